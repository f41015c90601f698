package record

import "strings"

// Column names of the TSE "boletim de urna" extract consumed by the pipeline.
const (
	ColElectionCode        = "CD_ELEICAO"
	ColElectionDescription = "DS_ELEICAO"
	ColElectionYear        = "ANO_ELEICAO"
	ColElectionType        = "CD_TIPO_ELEICAO"
	ColRound               = "NR_TURNO"
	ColBallotDate          = "DT_PLEITO"
	ColGeneratedAt         = "DT_GERACAO"
	ColStateCode           = "SG_UF"
	ColMunicipalityCode    = "CD_MUNICIPIO"
	ColMunicipalityName    = "NM_MUNICIPIO"
	ColOfficeCode          = "CD_CARGO_PERGUNTA"
	ColOfficeDescription   = "DS_CARGO_PERGUNTA"
	ColPartyNumber         = "NR_PARTIDO"
	ColPartyAbbreviation   = "SG_PARTIDO"
	ColPartyName           = "NM_PARTIDO"
	ColBallotNumber        = "NR_VOTAVEL"
	ColCandidateName       = "NM_VOTAVEL"
	ColVotes               = "QT_VOTOS"
)

// RequiredColumns must be present in every extract header.
var RequiredColumns = []string{
	ColElectionCode,
	ColMunicipalityCode,
	ColOfficeCode,
	ColBallotNumber,
	ColVotes,
}

// Null literals used by the TSE extracts for "no value".
const (
	NullMarker      = "#NULO#"
	NotExistsMarker = "#NE#"
	dateLayout      = "02/01/2006"
	dateTimeLayout  = "02/01/2006 15:04:05"
)

// Clean trims a raw field and maps the null literals to the empty string.
func Clean(v string) string {
	v = strings.TrimSpace(v)
	if v == NullMarker || v == NotExistsMarker {
		return ""
	}
	return v
}
