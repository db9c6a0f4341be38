// Package engine owns the shared print queue: it assigns each job its
// position, prices it, walks it through the status lifecycle and decides
// on every tick which jobs move. All mutations are serialized behind a
// single mutex; persistence and notification delivery are best-effort
// collaborators that never block or roll back a mutation.
package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/premsagar786/printsmart/internal/notify"
	"github.com/premsagar786/printsmart/internal/pricing"
	"github.com/premsagar786/printsmart/internal/store"
)

// Preferences controls which notification events the engine emits.
// Delivery itself is the notifier's problem.
type Preferences struct {
	NewJob   bool `json:"newJob"`
	JobReady bool `json:"jobReady"`
}

func DefaultPreferences() Preferences {
	return Preferences{NewJob: true, JobReady: false}
}

// Rand supplies the randomness for token suffixes and the auto-collect
// sweep. *math/rand.Rand satisfies it; tests inject a scripted source.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// readyWalkInThreshold: the counter sweep only happens once more than
// this many walk-in jobs are waiting at the counter.
const readyWalkInThreshold = 2

type Config struct {
	TickInterval time.Duration
}

type saveRequest struct {
	key  string
	blob []byte
}

type Engine struct {
	mu    sync.Mutex
	jobs  []*Job
	rates pricing.RateTable
	prefs Preferences

	store    store.Store
	notifier notify.Notifier
	rng      Rand

	lastID       int64
	tickInterval time.Duration

	saveCh  chan saveRequest
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func New(st store.Store, notifier notify.Notifier, rng Rand, cfg Config) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 7 * time.Second
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	e := &Engine{
		store:        st,
		notifier:     notifier,
		rng:          rng,
		tickInterval: cfg.TickInterval,
		saveCh:       make(chan saveRequest, 16),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	e.loadState()
	return e
}

// loadState restores the queue, rates and preferences from the store.
// Missing or unparsable slots fall back to the built-in defaults; a
// corrupt blob is logged and replaced, never fatal.
func (e *Engine) loadState() {
	e.rates = pricing.DefaultRates()
	if blob, ok, err := e.store.Get(store.KeyRates); err != nil {
		log.Printf("[engine] failed to load rates, using defaults: %v", err)
	} else if ok {
		var rates pricing.RateTable
		if err := json.Unmarshal(blob, &rates); err != nil {
			log.Printf("[engine] corrupt rates data, using defaults: %v", err)
		} else {
			e.rates = rates
		}
	}

	e.prefs = DefaultPreferences()
	if blob, ok, err := e.store.Get(store.KeyNotifications); err != nil {
		log.Printf("[engine] failed to load notification settings, using defaults: %v", err)
	} else if ok {
		var prefs Preferences
		if err := json.Unmarshal(blob, &prefs); err != nil {
			log.Printf("[engine] corrupt notification settings, using defaults: %v", err)
		} else {
			e.prefs = prefs
		}
	}

	loaded := false
	if blob, ok, err := e.store.Get(store.KeyQueue); err != nil {
		log.Printf("[engine] failed to load queue, seeding defaults: %v", err)
	} else if ok {
		var jobs []*Job
		if err := json.Unmarshal(blob, &jobs); err != nil {
			log.Printf("[engine] corrupt queue data, seeding defaults: %v", err)
		} else if len(jobs) > 0 {
			e.jobs = jobs
			loaded = true
		}
	}
	if !loaded {
		e.jobs = seedJobs()
	}

	for _, j := range e.jobs {
		if !j.Priority.Valid() {
			j.Priority = PriorityNormal
		}
		if !j.Status.Valid() {
			j.Status = StatusQueued
		}
		if j.ID > e.lastID {
			e.lastID = j.ID
		}
	}
	sortJobs(e.jobs)

	if !loaded {
		e.persistQueueLocked()
	}
}

// seedJobs is the documented default data set used when no queue has
// ever been saved: a handful of jobs in varied states so the dashboard
// and customer view have something to show.
func seedJobs() []*Job {
	now := time.Now()
	return []*Job{
		{ID: 1, FileName: "thermo_notes.pdf", Pages: 45, Status: StatusPrinting, Token: "PS-123", Cost: 22.5, Priority: PriorityNormal, PaymentStatus: PaymentPaid, CustomerName: "Riya Sharma", PayerReference: "riya.s@okicici", CreatedAt: now},
		{ID: 2, FileName: "urgent_assignment.pdf", Pages: 10, Status: StatusQueued, Token: "PS-126", Cost: 12.5, IsExpedited: true, Priority: PriorityNormal, PaymentStatus: PaymentPaid, CustomerName: "Arjun Verma", PayerReference: "arjun.verma@ybl", CreatedAt: now},
		{ID: 3, FileName: "lab_report_final.docx", Pages: 12, Status: StatusQueued, Token: "PS-124", Cost: 6.0, Priority: PriorityNormal, PaymentStatus: PaymentUnpaid, CustomerName: "Priya Patel", CreatedAt: now},
		{ID: 4, FileName: "presentation.ppt", Pages: 30, Status: StatusQueued, Token: "PS-125", Cost: 60.0, Priority: PriorityNormal, PaymentStatus: PaymentPaid, CustomerName: "Sameer Khan", PayerReference: "sameer.khan@okhdfc", CreatedAt: now},
		{ID: 5, FileName: "essay_draft.docx", Pages: 5, Status: StatusCollected, Token: "PS-121", Cost: 2.5, Priority: PriorityNormal, PaymentStatus: PaymentPaid, CustomerName: "Anjali Singh", PayerReference: "anjali.s@paytm", CreatedAt: now},
	}
}

// Start launches the background saver and the autonomous tick timer.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	go e.saver()
	go e.ticker()
}

// Stop halts the background goroutines and flushes pending saves.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) ticker() {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// saver serializes store writes off the mutation path. Saves are
// best-effort: a failure is logged and the in-memory state stays
// authoritative for the running process.
func (e *Engine) saver() {
	defer close(e.doneCh)
	for {
		select {
		case req := <-e.saveCh:
			if err := e.store.Set(req.key, req.blob); err != nil {
				log.Printf("[engine] failed to save %s: %v", req.key, err)
			}
		case <-e.stopCh:
			for {
				select {
				case req := <-e.saveCh:
					if err := e.store.Set(req.key, req.blob); err != nil {
						log.Printf("[engine] failed to save %s: %v", req.key, err)
					}
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) enqueueSave(key string, blob []byte) {
	select {
	case e.saveCh <- saveRequest{key: key, blob: blob}:
	default:
		// Queue full. Drop this snapshot; a later save supersedes it.
		log.Printf("[engine] save queue full, dropping snapshot for %s", key)
	}
}

func (e *Engine) persistQueueLocked() {
	blob, err := json.Marshal(e.jobs)
	if err != nil {
		log.Printf("[engine] failed to marshal queue: %v", err)
		return
	}
	e.enqueueSave(store.KeyQueue, blob)
}

// notification is captured under the lock and emitted after release so
// a slow notifier can never stall a mutation.
type notification struct {
	title string
	body  string
}

func (e *Engine) emit(pending []notification) {
	for _, n := range pending {
		e.notifier.Notify(n.title, n.body)
	}
}

// SubmitRequest carries everything needed to price and enqueue a job.
type SubmitRequest struct {
	FileName       string
	Options        pricing.Options
	CustomerName   string
	PayerReference string
	DocumentHandle string
	Paid           bool
	WalkIn         bool
}

// Submit prices the request against the current rates, allocates an id
// and a unique token, and inserts the job in queue order. The cost is
// fixed at submission; later rate changes never reprice existing jobs.
func (e *Engine) Submit(req SubmitRequest) (Job, error) {
	if req.Options.TotalPages < 1 {
		return Job{}, fmt.Errorf("page count must be at least 1")
	}
	if req.Options.Copies < 1 {
		req.Options.Copies = 1
	}
	if req.FileName == "" {
		req.FileName = "Walk-in Order"
	}

	e.mu.Lock()

	job := &Job{
		ID:             e.allocateIDLocked(),
		FileName:       req.FileName,
		Pages:          req.Options.TotalPages,
		IsWalkIn:       req.WalkIn,
		Token:          e.generateTokenLocked(req.WalkIn),
		Cost:           pricing.Price(req.Options, e.rates),
		IsExpedited:    req.Options.Expedited,
		Priority:       PriorityNormal,
		Status:         StatusQueued,
		PaymentStatus:  PaymentUnpaid,
		CustomerName:   req.CustomerName,
		PayerReference: req.PayerReference,
		DocumentHandle: req.DocumentHandle,
		CreatedAt:      time.Now(),
	}
	if req.Paid {
		job.PaymentStatus = PaymentPaid
	}

	e.jobs = append(e.jobs, job)
	sortJobs(e.jobs)
	e.persistQueueLocked()

	var pending []notification
	if e.prefs.NewJob {
		if job.IsWalkIn {
			pending = append(pending, notification{
				title: "New Walk-in Order!",
				body:  fmt.Sprintf("Job %s added to the queue.", job.Token),
			})
		} else {
			pending = append(pending, notification{
				title: "New Online Order!",
				body:  fmt.Sprintf("Job %s for %q added to the queue.", job.Token, job.FileName),
			})
		}
	}

	snapshot := *job
	e.mu.Unlock()

	e.emit(pending)
	return snapshot, nil
}

func (e *Engine) allocateIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}

// SetPriority changes a queued job's priority and re-sorts the whole
// collection. Jobs past Queued keep the priority they were served with;
// the call is a no-op for them.
func (e *Engine) SetPriority(jobID int64, p Priority) (Job, error) {
	if !p.Valid() {
		return Job{}, fmt.Errorf("invalid priority %d", p)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	job := e.findLocked(jobID)
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	if job.Status != StatusQueued {
		return *job, nil
	}

	job.Priority = p
	sortJobs(e.jobs)
	e.persistQueueLocked()
	return *job, nil
}

// Transition moves a job exactly one step forward. Any request that is
// not the next status in the lifecycle is rejected with the state
// untouched.
func (e *Engine) Transition(jobID int64, target Status) (Job, error) {
	e.mu.Lock()

	job := e.findLocked(jobID)
	if job == nil {
		e.mu.Unlock()
		return Job{}, ErrJobNotFound
	}

	next, ok := job.Status.Next()
	if !ok || next != target {
		err := &InvalidTransitionError{From: job.Status, To: target}
		e.mu.Unlock()
		return Job{}, err
	}

	job.Status = target
	e.persistQueueLocked()

	var pending []notification
	if target == StatusReady && e.prefs.JobReady {
		pending = append(pending, readyNotification(job))
	}

	snapshot := *job
	e.mu.Unlock()

	e.emit(pending)
	return snapshot, nil
}

// Advance moves a job one step forward without the caller naming the
// target state.
func (e *Engine) Advance(jobID int64) (Job, error) {
	e.mu.Lock()
	job := e.findLocked(jobID)
	if job == nil {
		e.mu.Unlock()
		return Job{}, ErrJobNotFound
	}
	next, ok := job.Status.Next()
	e.mu.Unlock()

	if !ok {
		return Job{}, &InvalidTransitionError{From: StatusCollected, To: StatusCollected}
	}
	return e.Transition(jobID, next)
}

// ResolveToken implements token-based collection: a Ready job is handed
// over and marked Collected; anything else is a typed failure. A token
// whose job was already collected resolves as not found, never as "not
// ready".
func (e *Engine) ResolveToken(token string) (Job, error) {
	e.mu.Lock()

	var job *Job
	for _, j := range e.jobs {
		if j.Token == token {
			job = j
			break
		}
	}

	if job == nil || job.Status == StatusCollected {
		e.mu.Unlock()
		return Job{}, ErrTokenNotFound
	}
	if job.Status != StatusReady {
		err := &NotReadyError{Token: token, Status: job.Status}
		e.mu.Unlock()
		return Job{}, err
	}

	job.Status = StatusCollected
	e.persistQueueLocked()
	snapshot := *job
	e.mu.Unlock()

	return snapshot, nil
}

// ResolveScanCode accepts a decoded QR payload. Strings outside the
// "PrintSmart-Token:<token>" namespace are rejected without any lookup.
func (e *Engine) ResolveScanCode(code string) (Job, error) {
	token, err := parseScanCode(code)
	if err != nil {
		return Job{}, err
	}
	return e.ResolveToken(token)
}

// MarkPaid is idempotent and only ever touches the payment status.
func (e *Engine) MarkPaid(jobID int64) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job := e.findLocked(jobID)
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	if job.PaymentStatus != PaymentPaid {
		job.PaymentStatus = PaymentPaid
		e.persistQueueLocked()
	}
	return *job, nil
}

// Tick runs the autonomous progress step: finish the printing job,
// start the next queued one, and occasionally sweep the counter of
// waiting walk-in orders. A tick that changes nothing is a no-op and
// raises no notifications.
func (e *Engine) Tick() bool {
	e.mu.Lock()

	changed := false
	var becameReady []*Job

	if printing := e.findByStatusLocked(StatusPrinting); printing != nil {
		printing.Status = StatusReady
		becameReady = append(becameReady, printing)
		changed = true
	}

	if e.findByStatusLocked(StatusPrinting) == nil {
		if next := e.nextQueuedLocked(); next != nil {
			next.Status = StatusPrinting
			changed = true
		}
	}

	// Staff periodically clear the counter of walk-in orders, but only
	// once a small pile has built up. Online orders wait for their
	// customer or an operator.
	readyWalkIns := e.readyWalkInsLocked()
	if len(readyWalkIns) > readyWalkInThreshold && e.rng.Float64() > 0.5 {
		oldest := readyWalkIns[0]
		for _, j := range readyWalkIns[1:] {
			if j.ID < oldest.ID {
				oldest = j
			}
		}
		oldest.Status = StatusCollected
		changed = true
	}

	if !changed {
		e.mu.Unlock()
		return false
	}

	e.persistQueueLocked()

	var pending []notification
	if e.prefs.JobReady {
		for _, j := range becameReady {
			pending = append(pending, readyNotification(j))
		}
	}
	e.mu.Unlock()

	e.emit(pending)
	return true
}

func readyNotification(j *Job) notification {
	return notification{
		title: "Job Ready!",
		body:  fmt.Sprintf("Job %s (%s) is ready for collection.", j.Token, j.FileName),
	}
}

func (e *Engine) findLocked(jobID int64) *Job {
	for _, j := range e.jobs {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}

func (e *Engine) findByStatusLocked(s Status) *Job {
	for _, j := range e.jobs {
		if j.Status == s {
			return j
		}
	}
	return nil
}

// nextQueuedLocked returns the head of the queued jobs. The collection
// is kept sorted, so the first Queued entry is the next to serve.
func (e *Engine) nextQueuedLocked() *Job {
	for _, j := range e.jobs {
		if j.Status == StatusQueued {
			return j
		}
	}
	return nil
}

func (e *Engine) readyWalkInsLocked() []*Job {
	var out []*Job
	for _, j := range e.jobs {
		if j.Status == StatusReady && j.IsWalkIn {
			out = append(out, j)
		}
	}
	return out
}

// Rates returns the current rate table.
func (e *Engine) Rates() pricing.RateTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rates
}

// UpdateRates fully replaces the rate table and persists it. Existing
// jobs keep their quoted cost.
func (e *Engine) UpdateRates(rates pricing.RateTable) error {
	if rates.BWPageRate < 0 || rates.ColorPageRate < 0 {
		return fmt.Errorf("page rates cannot be negative")
	}
	if rates.DuplexMultiplier <= 0 || rates.DuplexMultiplier > 1 {
		return fmt.Errorf("duplex multiplier must be in (0, 1]")
	}
	if rates.ExpediteMultiplier < 1 {
		return fmt.Errorf("expedite multiplier must be at least 1")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rates = rates
	blob, err := json.Marshal(rates)
	if err != nil {
		log.Printf("[engine] failed to marshal rates: %v", err)
		return nil
	}
	e.enqueueSave(store.KeyRates, blob)
	return nil
}

func (e *Engine) Preferences() Preferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prefs
}

func (e *Engine) UpdatePreferences(prefs Preferences) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prefs = prefs
	blob, err := json.Marshal(prefs)
	if err != nil {
		log.Printf("[engine] failed to marshal notification settings: %v", err)
		return
	}
	e.enqueueSave(store.KeyNotifications, blob)
}

// Quote prices options against the current rates without enqueuing
// anything.
func (e *Engine) Quote(opts pricing.Options) float64 {
	e.mu.Lock()
	rates := e.rates
	e.mu.Unlock()
	return pricing.Price(opts, rates)
}

// Jobs returns a value snapshot of the whole collection in queue order.
func (e *Engine) Jobs() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Job, len(e.jobs))
	for i, j := range e.jobs {
		out[i] = *j
	}
	return out
}

// Job returns a single job by id.
func (e *Engine) Job(jobID int64) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job := e.findLocked(jobID)
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// LiveQueue is the customer-facing view: everything not yet collected,
// plus the caller's own job whatever its status.
func (e *Engine) LiveQueue(ownJobID int64) []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		if j.Status != StatusCollected || j.ID == ownJobID {
			out = append(out, *j)
		}
	}
	return out
}

// Stats summarizes the day for the dashboard header cards.
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	TotalEarnings float64 `json:"total_earnings"`
	Queued        int     `json:"queued"`
	Printing      int     `json:"printing"`
	Ready         int     `json:"ready"`
	Collected     int     `json:"collected"`
	Unpaid        int     `json:"unpaid"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{TotalJobs: len(e.jobs)}
	for _, j := range e.jobs {
		stats.TotalEarnings += j.Cost
		switch j.Status {
		case StatusQueued:
			stats.Queued++
		case StatusPrinting:
			stats.Printing++
		case StatusReady:
			stats.Ready++
		case StatusCollected:
			stats.Collected++
		}
		if j.PaymentStatus == PaymentUnpaid {
			stats.Unpaid++
		}
	}
	return stats
}
