package pipeline

// Stage names one step of a cleaning run. Stages run in the order of Stages
// and there is no backward transition.
type Stage string

const (
	StageDetectNulls      Stage = "detect_nulls"
	StageDetectNegatives  Stage = "detect_negatives"
	StageRemoveDuplicates Stage = "remove_duplicates"
	StageNormalizePrices  Stage = "normalize_prices"
	StageFilterCategories Stage = "filter_categories"
	StageLookupZips       Stage = "lookup_zips"
	StageFormatAddresses  Stage = "format_addresses"
	StagePersist          Stage = "persist"
	StagePersisted        Stage = "persisted" // terminal
)

// Stages is the fixed run order, ending in the terminal stage.
var Stages = []Stage{
	StageDetectNulls,
	StageDetectNegatives,
	StageRemoveDuplicates,
	StageNormalizePrices,
	StageFilterCategories,
	StageLookupZips,
	StageFormatAddresses,
	StagePersist,
	StagePersisted,
}
