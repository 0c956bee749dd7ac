package wage

// =============================================================================
// CALCULATION LOG - Ordered audit trail of one derivation
// =============================================================================

// Step identifies a derivation step. Steps always appear in a result's log
// in the order they are declared here; audit replay depends on it.
type Step string

const (
	StepRuleResolved       Step = "rule_resolved"
	StepWorkMinutes        Step = "work_minutes"
	StepOvertimeMinutes    Step = "overtime_minutes"
	StepNightMinutes       Step = "night_minutes"
	StepBaseWage           Step = "base_wage"
	StepOvertimeWage       Step = "overtime_wage"
	StepNightWage          Step = "night_wage"
	StepHolidayWage        Step = "holiday_wage"
	StepRestraintAllowance Step = "restraint_allowance"
	StepTotal              Step = "total"
)

// StepOrder lists every step in derivation order.
var StepOrder = []Step{
	StepRuleResolved,
	StepWorkMinutes,
	StepOvertimeMinutes,
	StepNightMinutes,
	StepBaseWage,
	StepOvertimeWage,
	StepNightWage,
	StepHolidayWage,
	StepRestraintAllowance,
	StepTotal,
}

// LogEntry records one step. Fields is open-ended so steps can grow new
// keys without breaking readers; decimal values are stored as strings.
type LogEntry struct {
	Step   Step           `json:"step"`
	Fields map[string]any `json:"fields"`
}

// Field returns the value logged under key, or nil.
func (e LogEntry) Field(key string) any {
	return e.Fields[key]
}

// calcLog is the append-only builder used while a calculation runs.
// Entries are only exposed through entries(), which hands back a copy.
type calcLog struct {
	list []LogEntry
}

func (l *calcLog) add(step Step, kv ...any) {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	l.list = append(l.list, LogEntry{Step: step, Fields: fields})
}

func (l *calcLog) entries() []LogEntry {
	out := make([]LogEntry, len(l.list))
	copy(out, l.list)
	return out
}
