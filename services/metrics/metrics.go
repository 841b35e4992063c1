// Package metrics holds the Prometheus collectors for the HAL and the lesson
// runner. Collectors register on the default registry; the status server
// exposes them on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	halEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superkit_hal_events_published_total",
		Help: "Capability events published by the HAL, by kind and class",
	}, []string{"kind", "class"}) // class=value|event|degraded

	halEmitDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "superkit_hal_emit_drops_total",
		Help: "Device events dropped because the HAL event queue was full",
	})

	halControls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superkit_hal_controls_total",
		Help: "Control requests handled by the HAL, by kind, verb and outcome",
	}, []string{"kind", "verb", "outcome"})

	halDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "superkit_hal_devices",
		Help: "Devices currently built and initialised by the HAL",
	})

	gpioEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superkit_gpio_edges_total",
		Help: "Debounced GPIO edges delivered to devices",
	}, []string{"pin", "edge"})

	gpioISRDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "superkit_gpio_isr_drops_total",
		Help: "GPIO interrupts dropped before reaching the edge worker",
	})

	pwmRamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superkit_pwm_ramps_total",
		Help: "PWM ramp requests by outcome",
	}, []string{"outcome"}) // outcome=started|busy|snapped

	lessonRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superkit_lesson_runs_total",
		Help: "Lesson runs by lesson and outcome",
	}, []string{"lesson", "outcome"})

	lessonRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "superkit_lesson_running",
		Help: "Whether a lesson is currently running (1) or not (0)",
	}, []string{"lesson"})
)

// HALPublished counts one capability publication.
func HALPublished(kind, class string) { halEventsPublished.WithLabelValues(kind, class).Inc() }

// HALEmitDropped counts an event lost on the device -> HAL queue.
func HALEmitDropped() { halEmitDrops.Inc() }

// HALControl counts one control request outcome (an errcode string or "ok").
func HALControl(kind, verb, outcome string) { halControls.WithLabelValues(kind, verb, outcome).Inc() }

// HALDevices records the number of live devices.
func HALDevices(n int) { halDevices.Set(float64(n)) }

// GPIOEdge counts one delivered edge.
func GPIOEdge(pin int, edge string) { gpioEdges.WithLabelValues(strconv.Itoa(pin), edge).Inc() }

// GPIOISRDropped counts one interrupt lost at the ISR queue.
func GPIOISRDropped() { gpioISRDrops.Inc() }

// PWMRamp counts a ramp request.
func PWMRamp(outcome string) { pwmRamps.WithLabelValues(outcome).Inc() }

// LessonStarted marks lesson as running.
func LessonStarted(lesson string) { lessonRunning.WithLabelValues(lesson).Set(1) }

// LessonFinished clears the running flag and counts the outcome.
func LessonFinished(lesson, outcome string) {
	lessonRunning.WithLabelValues(lesson).Set(0)
	lessonRuns.WithLabelValues(lesson, outcome).Inc()
}
