// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend only on domain, ports and small internal helpers
// (logger, metrics, retry); every adapter is injected.
package services
