// Package cashier maintains the local state of FastSpring subscriptions,
// billing periods and invoices.
//
// The package is storage- and transport-agnostic: persistence goes through
// the Storage interface (see storage/memory, storage/postgres, storage/redis
// for implementations) and outbound FastSpring calls go through the Gateway
// interface (see pkg/cashier/fastspring for the HTTP client). Inbound
// webhook handling lives in pkg/cashier/webhook.
package cashier
