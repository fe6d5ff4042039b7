package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures across the pipeline. Configuration and
// integrity errors are never retriable; collaborator errors are safe to
// retry as a whole invocation because state is only persisted after a
// stage completes.
var (
	// TagConfig marks bad identity, invalid targets, or missing
	// prerequisite files.
	TagConfig = goerr.NewTag("configuration")

	// TagCollaborator marks transport failures from the release host or
	// the content store.
	TagCollaborator = goerr.NewTag("collaborator")

	// TagIntegrity marks audit-file mismatches and descriptor corruption.
	TagIntegrity = goerr.NewTag("integrity")
)
