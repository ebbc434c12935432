package substrates

import (
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Per-valve metrics keys, registered on every circuit's Registry
// (spec.md §4.4, §5 "Metrics counters per circuit").
const (
	MetricTasksProcessed  = metricz.Key("valve.tasks_processed.total")
	MetricFaults          = metricz.Key("valve.faults.total")
	MetricIngressEnqueued = metricz.Key("valve.ingress_enqueued.total")
	MetricTransitEnqueued = metricz.Key("valve.transit_enqueued.total")
	MetricPending         = metricz.Key("valve.pending")

	MetricHubRebuilds   = metricz.Key("hub.rebuilds.total")
	MetricHubEpochBumps = metricz.Key("hub.epoch_bumps.total")
	MetricCaptureCount  = metricz.Key("reservoir.captures.total")
)

// Span names.
const (
	SpanValveTask  = tracez.Key("valve.task")
	SpanHubRebuild = tracez.Key("hub.rebuild")
)

// Signal constants for substrates lifecycle events, following a
// <component>.<event> naming pattern throughout. capitan is this module's
// structured-logging substrate; no code here reaches for the standard
// "log" package.
const (
	// Circuit / Valve lifecycle.
	SignalCircuitStarted capitan.Signal = "circuit.started"
	SignalCircuitClosing capitan.Signal = "circuit.closing"
	SignalCircuitClosed  capitan.Signal = "circuit.closed"
	SignalValveFault     capitan.Signal = "valve.fault"

	// Pool construction races.
	SignalPoolConstructed        capitan.Signal = "pool.constructed"
	SignalPoolRaceLost           capitan.Signal = "pool.race-lost"
	SignalPoolConstructionFailed capitan.Signal = "pool.construction-failed"

	// Subscription hub.
	SignalHubSubscribed   capitan.Signal = "hub.subscribed"
	SignalHubUnsubscribed capitan.Signal = "hub.unsubscribed"
	SignalHubRebuilt      capitan.Signal = "hub.rebuilt"
	SignalHubCrossCircuit capitan.Signal = "hub.cross-circuit-rejected"

	SignalSubscriberClosed capitan.Signal = "subscriber.closed"
	SignalRegistrarMisuse  capitan.Signal = "registrar.used-after-callback"

	// Reservoir.
	SignalReservoirDrained capitan.Signal = "reservoir.drained"
)

// Common field keys, typed via capitan's primitive key constructors.
var (
	FieldSubjectPath = capitan.NewStringKey("subject_path")
	FieldCircuitName = capitan.NewStringKey("circuit_name")
	FieldError       = capitan.NewStringKey("error")
	FieldTimestamp   = capitan.NewFloat64Key("timestamp")

	FieldChannelName   = capitan.NewStringKey("channel_name")
	FieldEpoch         = capitan.NewIntKey("epoch")
	FieldDeliveryCount = capitan.NewIntKey("delivery_count")

	FieldCaptureCount = capitan.NewIntKey("capture_count")
)
