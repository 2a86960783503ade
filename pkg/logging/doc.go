// Package logging provides the process-wide structured logger.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. Storage, the
// buffer pool, the lock manager, the keystore and the encryption
// transformation all log through this package so that level and destination
// are controlled from one place (the [log] section of the configuration).
//
// # Initialisation
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// If GetLogger is called before Init, a default INFO logger writing to stderr
// is installed on first use.
//
// # Context helpers
//
//	log := logging.WithTx(tid)                // adds tx_id
//	log := logging.WithPage(tableID, pageNo)  // adds table_id, page_no
//	log := logging.WithScheme("PAILLIER_")    // adds scheme
package logging
