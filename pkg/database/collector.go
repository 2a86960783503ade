package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector exposes DatabaseInfo on each scrape.
type statsCollector struct {
	db *Database

	up           *prometheus.Desc
	tables       *prometheus.Desc
	transactions *prometheus.Desc
	commits      *prometheus.Desc
	aborts       *prometheus.Desc
	errors       *prometheus.Desc
	active       *prometheus.Desc
}

func newStatsCollector(db *Database) *statsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("cipherdb", "database", name), help, nil, nil)
	}
	return &statsCollector{
		db:           db,
		up:           desc("up", "Database up status (1 = up, 0 = closed)"),
		tables:       desc("tables", "Number of tables registered in the catalog"),
		transactions: desc("transactions_started_total", "Transactions started through Begin"),
		commits:      desc("commits_total", "Transactions committed through Commit"),
		aborts:       desc("aborts_total", "Transactions aborted through Abort"),
		errors:       desc("errors_total", "Failed commits, encryptions, executions and transaction runs"),
		active:       desc("active_transactions", "Transactions still holding buffer-pool state"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.tables
	ch <- c.transactions
	ch <- c.commits
	ch <- c.aborts
	ch <- c.errors
	ch <- c.active
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	c.db.mutex.RLock()
	up := 1.0
	if c.db.closed {
		up = 0
	}
	c.db.mutex.RUnlock()

	info := c.db.GetStatistics()
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.tables, prometheus.GaugeValue, float64(info.TableCount))
	ch <- prometheus.MustNewConstMetric(c.transactions, prometheus.CounterValue, float64(info.TransactionsCount))
	ch <- prometheus.MustNewConstMetric(c.commits, prometheus.CounterValue, float64(info.CommitCount))
	ch <- prometheus.MustNewConstMetric(c.aborts, prometheus.CounterValue, float64(info.AbortCount))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(info.ErrorCount))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(info.ActiveTransactions))
}
