package identity

// Synthetic replacement corpora. Entries are upper case; callers restore the
// case style of the original token.

var nameTable = []string{
	"ABBOTT", "ADLER", "AHERN", "ALDEN", "ARCHER", "ASHBY", "BAIRD", "BARLOW",
	"BECKETT", "BELL", "BISHOP", "BRANDT", "BRENNAN", "CALLOWAY", "CARVER", "CHANDLER",
	"CONWAY", "CROSBY", "DALTON", "DEVLIN", "DORSEY", "DRAKE", "ELLISON", "EMERY",
	"FARRELL", "FENWICK", "FLETCHER", "GARLAND", "GILMORE", "HALE", "HARLOW", "HASTINGS",
	"IVERSON", "JARVIS", "KEATING", "KENDRICK", "LANGLEY", "LOCKWOOD", "MADDOX", "MERCER",
	"NOLAN", "OAKLEY", "PARRISH", "PRESCOTT", "QUINLAN", "RADCLIFFE", "SAWYER", "SINCLAIR",
	"ALMA", "AUGUST", "BLAIR", "CASSIDY", "DARIUS", "EDEN", "FINLEY", "GRETA",
	"HOLLIS", "IMOGEN", "JUDE", "KAI", "LENNOX", "MARLOWE", "NOEL", "ORLA",
	"PIPER", "REMY", "SILAS", "TAMSIN", "URIEL", "VERA", "WYATT", "YARA",
}

var streetTable = []string{
	"ASPEN", "BIRCHWOOD", "CEDAR", "DOGWOOD", "ELM", "FOXGLOVE", "GRANITE", "HAWTHORN",
	"IRONWOOD", "JUNIPER", "KESTREL", "LARCH", "MAGNOLIA", "NORTHGATE", "ORCHARD", "PINEHURST",
	"QUARRY", "RIVERBEND", "SUMMIT", "TIMBER", "UNION", "VALLEY", "WILLOW", "YARROW",
}

var streetSuffixTable = []string{
	"ST", "AVE", "RD", "LN", "DR", "CT", "WAY", "PL",
}

var placeTable = []string{
	"ASHFORD", "BRIGHTWATER", "CLEARBROOK", "DUNMORE", "EASTON", "FAIRHAVEN", "GLENWOOD", "HOLLOWAY",
	"IVYDALE", "KINGSLEY", "LAKEMONT", "MILLBROOK", "NEWBURY", "OAKRIDGE", "PINECREST", "QUEENSBURY",
	"REDFIELD", "STONEBRIDGE", "THORNBURY", "UPTON", "VALEMOUNT", "WESTMERE", "WINDHAM", "YORKTON",
}
