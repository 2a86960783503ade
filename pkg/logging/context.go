package logging

import (
	"log/slog"

	"cipherdb/pkg/primitives"
)

// WithTx returns a logger tagged with a transaction id.
func WithTx(tid primitives.TransactionID) *slog.Logger {
	return GetLogger().With("tx_id", uint64(tid))
}

// WithTable returns a logger tagged with a table id.
func WithTable(tableID primitives.TableID) *slog.Logger {
	return GetLogger().With("table_id", uint64(tableID))
}

func WithTableTx(tid primitives.TransactionID, tableID primitives.TableID) *slog.Logger {
	return GetLogger().With("tx_id", uint64(tid), "table_id", uint64(tableID))
}

func WithPage(tableID primitives.TableID, pageNo primitives.PageNumber) *slog.Logger {
	return GetLogger().With("table_id", uint64(tableID), "page_no", int64(pageNo))
}

func WithLock(tid primitives.TransactionID, resource string) *slog.Logger {
	return GetLogger().With("tx_id", uint64(tid), "resource", resource)
}

// WithScheme tags a logger with a cryptosystem name.
func WithScheme(scheme string) *slog.Logger {
	return GetLogger().With("scheme", scheme)
}

func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
