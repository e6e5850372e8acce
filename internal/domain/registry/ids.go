package registry

// Canonical module-id space (spec.md §9 open question, resolved). These
// mirror the module boundaries of the original implementation's dev/
// tree: configuration dispatch, interface management, BGP, and the
// database module.
const (
	ModuleCFG uint32 = iota + 1
	ModuleIF
	ModuleBGP
	ModuleDB
)

// EventCFG is the event id the CLI dispatcher queries on: every command
// dispatch is a synchronous query(sender, EventCFG, target_module, ...).
const EventCFG uint32 = 1
