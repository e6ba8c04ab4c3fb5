// Package preflight provides readiness checks for the external services,
// tools and filesystem paths mangarecap depends on.
//
// The "mangarecap preflight" command runs RunAll and prints every result next
// to the provider chain health from ProviderHealth. "mangarecap run" calls
// CheckDirectoryAccess and CheckFreeSpace on the run directory before any
// chapter starts.
package preflight
