package search

import "strings"

// CourtListener uses short court slugs, not human-readable names.
var courtSlugs = map[string]string{
	"S.D.N.Y.":   "nysd",
	"D.N.J.":     "njd",
	"D. Del.":    "deb",
	"D.D.C.":     "dcd",
	"S.D. Tex.":  "txsd",
	"N.D. Tex.":  "txnd",
	"E.D. Tex.":  "txed",
	"M.D. Fla.":  "flmd",
	"S.D. Fla.":  "flsd",
	"N.D. Ill.":  "ilnd",
	"E.D. Va.":   "vaed",
	"W.D. Va.":   "vaw",
	"S.D. Ind.":  "insd",
	"N.D. Cal.":  "cand",
	"C.D. Cal.":  "cacd",
	"S.D. Cal.":  "casd",
	"D. Md.":     "mdd",
	"D. Mass.":   "mad",
	"D. Conn.":   "ctd",
	"W.D.N.Y.":   "nywb",
	"E.D.N.Y.":   "nyed",
	"D.N.M.":     "nmd",
	"D. Nev.":    "nvd",
	"D. Ariz.":   "azd",
	"N.D. Ga.":   "gand",
	"D. Minn.":   "mnd",
	"E.D. Mo.":   "moed",
	"D. Kan.":    "ksd",
	"D. Colo.":   "cod",
	"W.D. Wash.": "wawd",
}

// CourtSlug converts a human-readable court name to its CourtListener slug.
// Returns "" for unknown courts; callers omit the court filter in that case.
func CourtSlug(court string) string {
	return courtSlugs[strings.TrimSpace(court)]
}
