// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint served by the API.
package metrics

import "expvar"

// Operation counters.
var (
	ChatTotal        = expvar.NewInt("bitlyfe_chat_total")
	DispatchTotal    = expvar.NewInt("bitlyfe_dispatch_total")
	FallbackUsed     = expvar.NewInt("bitlyfe_dispatch_fallback_total")
	AllFailed        = expvar.NewInt("bitlyfe_dispatch_exhausted_total")
	MemoryCreated    = expvar.NewInt("bitlyfe_memory_created_total")
	ShareLookups     = expvar.NewInt("bitlyfe_share_lookup_total")
	QuestsCompleted  = expvar.NewInt("bitlyfe_quest_completed_total")
	MemoriesPruned   = expvar.NewInt("bitlyfe_memory_pruned_total")
	ProviderFailures = expvar.NewMap("bitlyfe_provider_failures")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// IncProviderFailure records one failed call to the named provider.
func IncProviderFailure(provider string) { ProviderFailures.Add(provider, 1) }
