// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (dividend.go, sentiment.go, user.go, job.go, errors.go)
// hold the shared types and the contracts adapters implement. No implementation
// code lives here, which keeps adapters and the app layer free of import cycles.
package domain
