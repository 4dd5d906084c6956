// Package observability builds the process logger and the Prometheus
// metrics shared by the gate, the session manager and the audit pipeline.
//
// Metrics live in a private registry so that tests can create as many
// instances as they need without colliding on the default registerer.
package observability
