package models

// Choice is a stored code with its display label.
type Choice struct {
	Code  string
	Label string
}

const (
	CategoryAdvisory = "ASESORIA"
	CategoryOther    = "OTRO"

	ReferralNone  = "NO_REFERIDO"
	ReferralOther = "OTRA_INSTITUCION"

	// OtherInstitutionsLabel names the bucket that groups free-text institutions in reports.
	OtherInstitutionsLabel = "Otras Instituciones"
)

// Categories lists the reasons a visit can be recorded under, in display order.
var Categories = []Choice{
	{"ASESORIA", "Asesoría"},
	{"DIVORCIO_MUTUO_ACUERDO", "Divorcio Mutuo Acuerdo"},
	{"DIVORCIO_POR_DESAFECTO", "Divorcio por Desafecto"},
	{"CURATELA", "Curatela"},
	{"TUTELA", "Tutela"},
	{"DECLARACION_DE_UNICOS_HEREDERERO", "Declaración de Únicos Herederos Universales"},
	{"MEDIDA_ANTICIPADA_PROHIBICION_SALIDA_PAIS", "Medida Anticipada Prohibición Salida del País"},
	{"PERMISO_PARA_ESTUDIOS_MENORES", "Permiso para Estudios Menores de edad en Instituciones de seguridad"},
	{"REGIMEN_MANUTENCION", "Régimen de Manutención"},
	{"REGIMEN_CONVIVENCIA", "Régimen de Convivencia"},
	{"CARTA_SOLTERIA", "Carta de Soltería"},
	{"IMPUGNACION_DE_PATERNIDAD", "Impugnación de Paternidad"},
	{"PERMISOS_DE_VIAJE", "Permisos de Viajes"},
	{"TITULO_SUPLITORIO", "Título Supletorio"},
	{"OTRO", "Otro"},
}

// Institutions lists the referral targets, in display order.
var Institutions = []Choice{
	{"MINISTERIO_PUBLICO", "Ministerio Público"},
	{"DEFENSORIA_DEL_PUEBLO", "Defensoría del Pueblo"},
	{"PREFECTURA", "Prefectura"},
	{"JUECES_DE_PAZ", "Jueces de Paz"},
	{"REGISTRO_INMOBILIARIO", "Registro Inmobiliario"},
	{"REGISTRO_MERCANTIL", "Registro Mercantil"},
	{"REGISTRO_PRINCIPAL", "Registro Principal"},
	{"REGISTRO_CIVIL", "Registro Civil"},
	{"NOTARIA_PUBLICA", "Notaría Pública"},
	{"COMANDANCIA_POLICIA", "Comandancia de la Policía"},
	{"CICPC", "CICPC"},
	{"POLICIA_NACIONAL_BOLIVARIANA", "Policía Nacional Bolivariana"},
	{"GOBERNACION", "Gobernación"},
	{"ALCALDIA", "Alcaldía"},
	{"DEFENSA_PUBLICA", "Defensa Pública"},
	{"SENIAT", "SENIAT"},
	{"SEMAT", "SEMAT"},
	{"SUNDEE", "SUNDEE"},
	{"SEMAMECF", "SEMAMECF"},
	{"INAMUJER", "INAMUJER"},
	{"URDD", "URDD"},
	{"OAP", "OAP"},
	{"TRIBUNAL_SUPREMO_JUSTICIA", "Tribunal Supremo de Justicia (esta misma institución)"},
	{"OTRA_INSTITUCION", "Otra Institución"},
	{"NO_REFERIDO", "No requiere referir"},
}

var (
	categoryLabels    = labelIndex(Categories)
	institutionLabels = labelIndex(Institutions)
)

func labelIndex(choices []Choice) map[string]string {
	m := make(map[string]string, len(choices))
	for _, c := range choices {
		m[c.Code] = c.Label
	}
	return m
}

// CategoryLabel returns the display label of a category code, or the code itself when unknown.
func CategoryLabel(code string) string {
	if l, ok := categoryLabels[code]; ok {
		return l
	}
	return code
}

// InstitutionLabel returns the display label of a referral target code, or the code itself.
func InstitutionLabel(code string) string {
	if l, ok := institutionLabels[code]; ok {
		return l
	}
	return code
}

func IsCategory(code string) bool {
	_, ok := categoryLabels[code]
	return ok
}

func IsInstitution(code string) bool {
	_, ok := institutionLabels[code]
	return ok
}

// Pairs renders choices as [code, label] pairs for option endpoints.
func Pairs(choices []Choice) [][2]string {
	out := make([][2]string, len(choices))
	for i, c := range choices {
		out[i] = [2]string{c.Code, c.Label}
	}
	return out
}
