package utils

import "sort"

// Division is a CNAE division with its display label
type Division struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var industrialDivisions = []Division{
	{"05", "05 - Extração de Carvão Mineral"},
	{"06", "06 - Extração de Petróleo e Gás Natural"},
	{"07", "07 - Extração de Minerais Metálicos"},
	{"08", "08 - Extração de Minerais Não-Metálicos"},
	{"09", "09 - Atividades de Apoio à Extração de Minerais"},
	{"10", "10 - Fabricação de Produtos Alimentícios"},
	{"11", "11 - Fabricação de Bebidas"},
	{"12", "12 - Fabricação de Produtos do Fumo"},
	{"13", "13 - Fabricação de Produtos Têxteis"},
	{"14", "14 - Confecção de Artigos do Vestuário"},
	{"15", "15 - Prep. Couros e Fabricação de Artefatos de Couro"},
	{"16", "16 - Fabricação de Produtos de Madeira"},
	{"17", "17 - Fabricação de Celulose e Papel"},
	{"18", "18 - Impressão e Reprodução de Gravações"},
	{"19", "19 - Fabricação de Coque, Derivados do Petróleo e Biocombustíveis"},
	{"20", "20 - Fabricação de Produtos Químicos"},
	{"21", "21 - Fabricação de Farmoquímicos e Farmacêuticos"},
	{"22", "22 - Fabricação de Produtos de Borracha e Plástico"},
	{"23", "23 - Fabricação de Produtos de Minerais Não-Metálicos"},
	{"24", "24 - Metalurgia"},
	{"25", "25 - Fabricação de Produtos de Metal (exceto Máquinas)"},
	{"26", "26 - Fabricação de Equip. de Informática e Eletrônicos"},
	{"27", "27 - Fabricação de Máquinas e Equip. Elétricos"},
	{"28", "28 - Fabricação de Máquinas e Equipamentos"},
	{"29", "29 - Fabricação de Veículos Automotores"},
	{"30", "30 - Fabricação de Outros Equipamentos de Transporte"},
	{"31", "31 - Fabricação de Móveis"},
	{"32", "32 - Fabricação de Produtos Diversos"},
	{"33", "33 - Manutenção e Reparação de Máquinas e Equipamentos"},
}

// IndustrialDivisions returns the extraction and manufacturing divisions 05-33
func IndustrialDivisions() []Division {
	out := make([]Division, len(industrialDivisions))
	copy(out, industrialDivisions)
	return out
}

// DivisionLabel returns the display label for a division code, or the code itself
func DivisionLabel(code string) string {
	code = PadCode(code, 2)
	for _, d := range industrialDivisions {
		if d.Code == code {
			return d.Label
		}
	}
	if code == "" {
		return UnidentifiedLabel
	}
	return code
}

var stateNames = map[string]string{
	"AC": "Acre", "AL": "Alagoas", "AP": "Amapá", "AM": "Amazonas", "BA": "Bahia",
	"CE": "Ceará", "DF": "Distrito Federal", "ES": "Espírito Santo", "GO": "Goiás",
	"MA": "Maranhão", "MT": "Mato Grosso", "MS": "Mato Grosso do Sul", "MG": "Minas Gerais",
	"PA": "Pará", "PB": "Paraíba", "PR": "Paraná", "PE": "Pernambuco", "PI": "Piauí",
	"RJ": "Rio de Janeiro", "RN": "Rio Grande do Norte", "RS": "Rio Grande do Sul",
	"RO": "Rondônia", "RR": "Roraima", "SC": "Santa Catarina", "SP": "São Paulo",
	"SE": "Sergipe", "TO": "Tocantins",
	"EX": "Exterior",
}

// State is a federative unit code with its name
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// States returns the federative units sorted by code
func States() []State {
	out := make([]State, 0, len(stateNames))
	for code, name := range stateNames {
		out = append(out, State{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// IsState reports whether code is a known federative unit
func IsState(code string) bool {
	_, ok := stateNames[code]
	return ok
}

// StateName returns the name of a federative unit, or the code itself
func StateName(code string) string {
	if name, ok := stateNames[code]; ok {
		return name
	}
	return code
}

// Company size classes (porte_empresa)
const (
	SizeNotInformed = "00"
	SizeMicro       = "01"
	SizeSmall       = "03"
	SizeOther       = "05"
)

var sizeClasses = map[string]string{
	SizeNotInformed: "Não Informado",
	SizeMicro:       "Microempresa (ME)",
	SizeSmall:       "Empresa de Pequeno Porte (EPP)",
	SizeOther:       "Demais",
}

// IsSizeClass reports whether code is a known 2-digit size class
func IsSizeClass(code string) bool {
	_, ok := sizeClasses[code]
	return ok
}

// SizeClassDescription returns the label of a size class code
func SizeClassDescription(code string) string {
	if desc, ok := sizeClasses[PadCode(code, 2)]; ok {
		return desc
	}
	return code
}
