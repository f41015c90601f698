package dimension

// Schema describes how a dimension is stored: its table, the columns forming
// its natural key (unique in storage), the attribute columns written only on
// creation, and the key values that mean "not applicable".
type Schema struct {
	Type             Type
	Table            string
	KeyColumns       []string
	AttributeColumns []string
	Sentinels        []string
}

// IsSentinel reports whether a single-column key equals a sentinel value.
func (s Schema) IsSentinel(key NaturalKey) bool {
	if len(s.Sentinels) == 0 || len(key.Values) != 1 {
		return false
	}
	v := componentString(key.Values[0])
	for _, sentinel := range s.Sentinels {
		if v == sentinel {
			return true
		}
	}
	return false
}

// PartySentinels are party numbers for votes with no party (blank, null,
// write-in). They never become party rows.
var PartySentinels = []string{"-1", "", "#NULO#"}

var (
	ElectionSchema = Schema{
		Type:             TypeElection,
		Table:            "eleicoes",
		KeyColumns:       []string{"ano", "turno", "cd_eleicao"},
		AttributeColumns: []string{"tipo_eleicao", "dt_pleito", "ds_eleicao"},
	}
	StateSchema = Schema{
		Type:       TypeState,
		Table:      "estados",
		KeyColumns: []string{"sigla"},
	}
	MunicipalitySchema = Schema{
		Type:             TypeMunicipality,
		Table:            "municipios",
		KeyColumns:       []string{"estado_id", "codigo_tse"},
		AttributeColumns: []string{"nome"},
	}
	OfficeSchema = Schema{
		Type:             TypeOffice,
		Table:            "cargos",
		KeyColumns:       []string{"codigo"},
		AttributeColumns: []string{"descricao"},
	}
	PartySchema = Schema{
		Type:             TypeParty,
		Table:            "partidos",
		KeyColumns:       []string{"numero"},
		AttributeColumns: []string{"sigla", "nome"},
		Sentinels:        PartySentinels,
	}
	CandidateSchema = Schema{
		Type:             TypeCandidate,
		Table:            "candidatos",
		KeyColumns:       []string{"eleicao_id", "cargo_id", "nr_votavel"},
		AttributeColumns: []string{"partido_id", "nome"},
	}
)

// Schemas returns the star schema's dimensions keyed by type.
func Schemas() map[Type]Schema {
	return map[Type]Schema{
		TypeElection:     ElectionSchema,
		TypeState:        StateSchema,
		TypeMunicipality: MunicipalitySchema,
		TypeOffice:       OfficeSchema,
		TypeParty:        PartySchema,
		TypeCandidate:    CandidateSchema,
	}
}
