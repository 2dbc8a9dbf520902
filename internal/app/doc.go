// Package app provides the application service layer.
//
// Orchestrates use cases: cache-aside dividend resolution, subnet sentiment
// aggregation, stake actuation from trade jobs, user signup and token checks.
// Sits between HTTP handlers and adapters. Depends on domain interfaces, not concrete implementations.
package app
