package grok

// Field names produced by the compiled-in rules.
const (
	FieldPipelineStage   = "pipeline_stage"
	FieldPipelineTask    = "pipeline_task"
	FieldPipelineName    = "pipeline_name"
	FieldStatusCode      = "status_code"
	FieldRsyncSent       = "rsync_sent"
	FieldRsyncReceived   = "rsync_received"
	FieldRsyncThroughput = "rsync_throughput"

	// FieldWarriorAction carries the prefix table label
	FieldWarriorAction = "warrior_action"
)

// word matches a Unicode word character. RE2's \w is ASCII only.
const word = `[\pL\pM\p{Nd}\p{Pc}]`

// DefaultRules is the ordered rule list. More specific patterns come first.
// Digit and space classes stay ASCII: a non-ASCII digit could never cast.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `^(?P<pipeline_stage>Starting|Failed|Finished) (?P<pipeline_task>` + word + `+) for Item`},
		{Pattern: `^\d+=(?P<status_code>\d+) `},
		{Pattern: `sent (?P<rsync_sent>[\d,]+) bytes\s\sreceived (?P<rsync_received>[\d,]+) bytes\s\s(?P<rsync_throughput>[\d,\.]+) bytes`},
		{Pattern: `^(?P<pipeline_stage>Initializing) pipeline for '(?P<pipeline_name>.+)'`},
	}
}

// DefaultTypes declares the numeric captures.
func DefaultTypes() map[string]CastType {
	return map[string]CastType{
		FieldStatusCode:      CastInteger,
		FieldRsyncSent:       CastFloat,
		FieldRsyncReceived:   CastFloat,
		FieldRsyncThroughput: CastFloat,
	}
}

// DefaultPrefixes labels warrior pipeline events, checked in order.
func DefaultPrefixes() []PrefixLabel {
	return []PrefixLabel{
		{Prefix: "Received item", Label: "item_received"},
		{Prefix: "Queued file", Label: "queued_file"},
		{Prefix: "Queued user", Label: "queued_user"},
		{Prefix: "Queuing URL", Label: "queued_url"},
		{Prefix: "Queuing folder", Label: "queued_folder"},
		{Prefix: "Checking IP address", Label: "ip_check"},
		{Prefix: "Tracker confirmed item", Label: "item_confirmed"},
		{Prefix: "Uploading with Rsync", Label: "item_uploading"},
		{Prefix: "No item received.", Label: "no_items"},
	}
}

// DefaultRuleset compiles the built-in tables.
func DefaultRuleset() *Ruleset {
	return MustNewRuleset(DefaultRules(), DefaultTypes(), DefaultPrefixes())
}
