package metrics

import (
	"fmt"
	"log"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v2"
)

var (
	OrdersCreatedCounter = vm.GetOrCreateCounter(`razorpay_orders_total{result="created"}`)
	OrdersFailedCounter  = vm.GetOrCreateCounter(`razorpay_orders_total{result="failed"}`)

	EnrollmentsCommittedCounter = vm.GetOrCreateCounter(`enrollments_total{result="committed"}`)
	EnrollmentsConflictCounter  = vm.GetOrCreateCounter(`enrollments_total{result="conflict"}`)
	SignatureFailedCounter      = vm.GetOrCreateCounter(`enrollments_total{result="signature_failed"}`)
	EnrollmentsFailedCounter    = vm.GetOrCreateCounter(`enrollments_total{result="failed"}`)

	EnrollmentCommitDurationHistogram = vm.GetOrCreateHistogram(`enrollment_commit_duration_milliseconds`)

	AnnouncementsCacheHitCounter  = vm.GetOrCreateCounter(`announcements_cache_total{result="hit"}`)
	AnnouncementsCacheMissCounter = vm.GetOrCreateCounter(`announcements_cache_total{result="miss"}`)
)

// Best-effort enrollment steps
const (
	StepPaymentFetch  = "payment_fetch"
	StepPaymentRecord = "payment_record"
	StepBackfill      = "payment_backfill"
	StepLock          = "lock"
	StepPublish       = "publish"
	StepReceipt       = "receipt"
)

// BestEffortFailure counts a swallowed failure of a side step
func BestEffortFailure(step string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`enrollment_best_effort_failures_total{step=%q}`, step)).Inc()
}

// BestEffortFailures returns the current count for a step
func BestEffortFailures(step string) uint64 {
	return vm.GetOrCreateCounter(fmt.Sprintf(`enrollment_best_effort_failures_total{step=%q}`, step)).Get()
}

// CronRun counts cron job executions by result
func CronRun(job, result string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`cron_jobs_total{job=%q,result=%q}`, job, result)).Inc()
}

// Setup starts pushing metrics when a push URL is configured
func Setup(pushURL string, interval time.Duration, extraLabels string) {
	if pushURL == "" {
		return
	}

	if err := vm.InitPush(pushURL, interval, extraLabels, true); err != nil {
		log.Printf("Error initializing metrics push: %v", err)
	}
}

// Handler serves metrics in Prometheus text format
func Handler(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	vm.WritePrometheus(c.Response().BodyWriter(), true)
	return nil
}
