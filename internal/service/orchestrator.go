package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medsafe-risk-server/internal/domain"
)

// Caps applied when assembling the assessment. The remedy and
// recommendation caps are per drug, the evidence cap per interacting pair.
const (
	maxRemediesPerDrug        = 3
	maxRecommendationsPerDrug = 3
	maxEvidencePathsPerPair   = 3
)

// Collaborators bundles the external knowledge sources the orchestrator
// fans out to. All are injected as interfaces so test doubles can stand
// in for live services.
type Collaborators struct {
	History     domain.PatientHistoryProvider
	Features    domain.FeatureProvider
	DDI         domain.InteractionPredictor
	ADR         domain.AdverseReactionProvider
	DFI         domain.FoodInteractionProvider
	Remedies    domain.RemedyProvider
	Recommender domain.AlternativeRecommender
	Evidence    domain.EvidencePathProvider
}

// Options tunes orchestrator behaviour.
type Options struct {
	// CallTimeout bounds every individual collaborator call. A call
	// exceeding it is treated as a failure for that call only.
	CallTimeout time.Duration
	// AuditRetries is the number of additional save attempts after a
	// failed audit write before the failure is logged and dropped.
	AuditRetries int
	// AuditRetryDelay is the pause between audit save attempts.
	AuditRetryDelay time.Duration
}

// Orchestrator is the risk engine core. One Assess call fans out to the
// collaborators, joins their results behind stage barriers, applies the
// pure scorer and classifier, conditionally runs the recommendation and
// evidence stages, and commits exactly one audit record and at most one
// alert per completed request.
type Orchestrator struct {
	logger     *logrus.Logger
	collab     Collaborators
	config     domain.ConfigStore
	audit      domain.AuditSink
	alerts     domain.AlertPublisher
	scorer     *Scorer
	classifier *Classifier
	opts       Options
}

// NewOrchestrator creates the risk engine with its collaborators,
// configuration store, audit sink and alert publisher.
func NewOrchestrator(
	logger *logrus.Logger,
	collab Collaborators,
	config domain.ConfigStore,
	audit domain.AuditSink,
	alerts domain.AlertPublisher,
	opts Options,
) *Orchestrator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	if opts.AuditRetries < 0 {
		opts.AuditRetries = 0
	}
	if opts.AuditRetryDelay <= 0 {
		opts.AuditRetryDelay = 100 * time.Millisecond
	}
	return &Orchestrator{
		logger:     logger,
		collab:     collab,
		config:     config,
		audit:      audit,
		alerts:     alerts,
		scorer:     NewScorer(),
		classifier: NewClassifier(),
		opts:       opts,
	}
}

// fanoutResults holds the joined signals of the fetch stage, indexed by
// prescription position (per-drug slices) and pair enumeration position
// (DDI slice) so output ordering is independent of completion order.
type fanoutResults struct {
	features  []*domain.FeatureVector
	adr       []*domain.ADRResult
	dfi       [][]domain.DFIItem
	remedies  [][]domain.RemedySuggestion
	ddi       []*domain.DDIResult
	failures  []*domain.CollaboratorError
	failureMu sync.Mutex
}

func (r *fanoutResults) recordFailure(source domain.SignalSource, drugID string, err error) {
	r.failureMu.Lock()
	defer r.failureMu.Unlock()
	r.failures = append(r.failures, &domain.CollaboratorError{
		Source:  source,
		DrugID:  drugID,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	})
}

// Assess runs one complete risk assessment for a patient's prescription.
//
// Preconditions are checked before any collaborator call: the
// prescription must be non-empty and every item must carry a drug
// identifier. An unknown patient surfaces domain.ErrPatientNotFound.
// Individual collaborator failures during fan-out contribute a neutral
// signal and are recorded on the affected contributor; only a total
// outage of the DDI and ADR signals marks the assessment degraded.
func (o *Orchestrator) Assess(ctx context.Context, patientID string, prescription []domain.PrescriptionItem) (*domain.RiskAssessment, error) {
	if err := domain.ValidatePrescription(prescription); err != nil {
		return nil, fmt.Errorf("%s: %w", domain.ErrCodeInvalidRequest, err)
	}

	requestID := uuid.NewString()
	cfg := o.config.Snapshot()
	start := time.Now()

	log := o.logger.WithFields(logrus.Fields{
		"request_id":     requestID,
		"patient_id":     patientID,
		"drug_count":     len(prescription),
		"config_version": cfg.Version,
	})
	log.Info("Starting risk assessment")

	// Patient history is the gate for the whole request: the allergy
	// override cannot be evaluated without it.
	history, err := o.fetchHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}

	pairs := domain.EnumeratePairs(prescription)
	results := o.fanOut(ctx, patientID, prescription, pairs)

	// Barrier: every dispatched sub-call has returned, failed or timed
	// out. A cancelled request stops here with no audit and no alert.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled: %w", err)
	}

	contributors, score := o.scorer.Score(prescription, results.adr, results.ddi, cfg)
	o.annotateMissingSignals(contributors, prescription, pairs, results)

	level := o.classifier.Classify(score, prescription, history, cfg.Thresholds)

	assessment := &domain.RiskAssessment{
		RequestID:      requestID,
		PatientID:      patientID,
		Score:          score,
		Level:          level,
		Contributors:   contributors,
		DDISummary:     compactDDI(results.ddi),
		DFICautions:    flattenDFI(prescription, results.dfi),
		HomeRemedies:   flattenRemedies(prescription, results.remedies),
		Degraded:       o.isDegraded(pairs, results),
		ConfigSnapshot: cfg,
		AssessedAt:     time.Now().UTC(),
	}
	assessment.DFIFlag = len(assessment.DFICautions) > 0

	if level.RequiresRecommendations() {
		assessment.Recommendations = o.fetchRecommendations(ctx, prescription, history, results)
	}
	assessment.EvidencePaths = o.fetchEvidence(ctx, pairs, results)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled: %w", err)
	}

	// Side effects are committed on a context detached from request
	// cancellation: once the assessment is complete the audit record and
	// any alert must land even if the caller goes away mid-write.
	commitCtx := context.WithoutCancel(ctx)
	o.commitAudit(commitCtx, patientID, prescription, assessment)
	o.publishAlert(commitCtx, prescription, history, assessment)

	log.WithFields(logrus.Fields{
		"risk_score":  assessment.Score,
		"risk_level":  assessment.Level.String(),
		"degraded":    assessment.Degraded,
		"dfi_flag":    assessment.DFIFlag,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Risk assessment completed")

	return assessment, nil
}

// fetchHistory resolves the patient history snapshot. A miss or a
// failure here is terminal: assessing without allergy data could
// silently skip the CRITICAL override.
func (o *Orchestrator) fetchHistory(ctx context.Context, patientID string) (*domain.PatientHistory, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	history, err := o.collab.History.GetPatientHistory(callCtx, patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			return nil, fmt.Errorf("%s: %w", domain.ErrCodeNotFound, err)
		}
		return nil, fmt.Errorf("fetching patient history: %w", err)
	}
	return history, nil
}

// fanOut dispatches the fetch stage: one feature, ADR, DFI and remedy
// call per drug plus one DDI call per pair, all concurrent, each with
// its own bounded deadline. Results land in index-addressed slots so
// ordering matches the input regardless of completion order.
func (o *Orchestrator) fanOut(ctx context.Context, patientID string, prescription []domain.PrescriptionItem, pairs []domain.PairKey) *fanoutResults {
	n := len(prescription)
	results := &fanoutResults{
		features: make([]*domain.FeatureVector, n),
		adr:      make([]*domain.ADRResult, n),
		dfi:      make([][]domain.DFIItem, n),
		remedies: make([][]domain.RemedySuggestion, n),
		ddi:      make([]*domain.DDIResult, len(pairs)),
	}

	var wg sync.WaitGroup
	for i := range prescription {
		item := prescription[i]
		idx := i

		wg.Add(4)
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceFeatures, item.DrugID, results, func(callCtx context.Context) error {
				fv, err := o.collab.Features.GetFeatures(callCtx, patientID, item.DrugID)
				if err != nil {
					return err
				}
				results.features[idx] = fv
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceADR, item.DrugID, results, func(callCtx context.Context) error {
				adr, err := o.collab.ADR.GetADR(callCtx, patientID, item.DrugID)
				if err != nil {
					return err
				}
				results.adr[idx] = adr
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceDFI, item.DrugID, results, func(callCtx context.Context) error {
				items, err := o.collab.DFI.GetDFI(callCtx, item.DrugID)
				if err != nil {
					return err
				}
				results.dfi[idx] = items
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceRemedies, item.DrugID, results, func(callCtx context.Context) error {
				remedies, err := o.collab.Remedies.GetHomeRemedies(callCtx, item.Name)
				if err != nil {
					return err
				}
				results.remedies[idx] = remedies
				return nil
			})
		}()
	}

	for k := range pairs {
		pair := pairs[k]
		idx := k

		wg.Add(1)
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceDDI, pair.DrugA+"+"+pair.DrugB, results, func(callCtx context.Context) error {
				ddi, err := o.collab.DDI.GetDDI(callCtx, pair.DrugA, pair.DrugB)
				if err != nil {
					return err
				}
				ddi.Pair = pair
				results.ddi[idx] = ddi
				return nil
			})
		}()
	}

	wg.Wait()
	return results
}

// call runs a single collaborator sub-call under the per-call deadline,
// recording any failure without propagating it.
func (o *Orchestrator) call(ctx context.Context, source domain.SignalSource, subject string, results *fanoutResults, fn func(context.Context) error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		results.recordFailure(source, subject, err)
		o.logger.WithFields(logrus.Fields{
			"collaborator": string(source),
			"subject":      subject,
			"timeout":      errors.Is(err, context.DeadlineExceeded),
		}).WithError(err).Warn("Collaborator call failed, contributing neutral signal")
	}
}

// annotateMissingSignals marks, per contributor, which signal sources
// produced no data so the explanation never pretends data was present.
func (o *Orchestrator) annotateMissingSignals(contributors []domain.Contributor, prescription []domain.PrescriptionItem, pairs []domain.PairKey, results *fanoutResults) {
	for i, item := range prescription {
		var missing []string
		if results.features[i] == nil {
			missing = append(missing, string(domain.SourceFeatures))
		}
		if results.adr[i] == nil {
			missing = append(missing, string(domain.SourceADR))
		}
		for k, pair := range pairs {
			if results.ddi[k] == nil && pair.Contains(item.DrugID) {
				missing = append(missing, string(domain.SourceDDI))
				break
			}
		}
		contributors[i].MissingSignals = missing
	}
}

// isDegraded reports whether every scoring signal call (ADR per drug,
// DDI per pair) failed. A degraded assessment must not be read as a
// confident LOW.
func (o *Orchestrator) isDegraded(pairs []domain.PairKey, results *fanoutResults) bool {
	total := len(results.adr) + len(pairs)
	if total == 0 {
		return false
	}
	for _, adr := range results.adr {
		if adr != nil {
			return false
		}
	}
	for _, ddi := range results.ddi {
		if ddi != nil {
			return false
		}
	}
	return true
}

// fetchRecommendations runs the conditional recommendation stage: up to
// three alternatives per drug, fetched concurrently with the patient
// history as exclusion context, joined in prescription order.
func (o *Orchestrator) fetchRecommendations(ctx context.Context, prescription []domain.PrescriptionItem, history *domain.PatientHistory, results *fanoutResults) []string {
	perDrug := make([][]string, len(prescription))

	var wg sync.WaitGroup
	for i := range prescription {
		item := prescription[i]
		idx := i

		wg.Add(1)
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceRecommender, item.DrugID, results, func(callCtx context.Context) error {
				alts, err := o.collab.Recommender.GetAlternatives(callCtx, item.DrugID, history)
				if err != nil {
					return err
				}
				if len(alts) > maxRecommendationsPerDrug {
					alts = alts[:maxRecommendationsPerDrug]
				}
				perDrug[idx] = alts
				return nil
			})
		}()
	}
	wg.Wait()

	var recommendations []string
	for _, alts := range perDrug {
		recommendations = append(recommendations, alts...)
	}
	return recommendations
}

// fetchEvidence runs the evidence stage: up to three paths per pair with
// a non-zero predicted DDI risk, fetched concurrently, joined in pair
// enumeration order.
func (o *Orchestrator) fetchEvidence(ctx context.Context, pairs []domain.PairKey, results *fanoutResults) []domain.EvidencePath {
	perPair := make([][]domain.EvidencePath, len(pairs))

	var wg sync.WaitGroup
	for k := range pairs {
		if results.ddi[k] == nil || results.ddi[k].Risk == 0 {
			continue
		}
		pair := pairs[k]
		idx := k

		wg.Add(1)
		go func() {
			defer wg.Done()
			o.call(ctx, domain.SourceEvidence, pair.DrugA+"+"+pair.DrugB, results, func(callCtx context.Context) error {
				paths, err := o.collab.Evidence.GetEvidencePaths(callCtx, pair.DrugA, pair.DrugB)
				if err != nil {
					return err
				}
				if len(paths) > maxEvidencePathsPerPair {
					paths = paths[:maxEvidencePathsPerPair]
				}
				perPair[idx] = paths
				return nil
			})
		}()
	}
	wg.Wait()

	var evidence []domain.EvidencePath
	for _, paths := range perPair {
		evidence = append(evidence, paths...)
	}
	return evidence
}

// commitAudit writes exactly one audit record for the completed request,
// retrying a bounded number of times. A persistent failure is logged and
// must not fail the response.
func (o *Orchestrator) commitAudit(ctx context.Context, patientID string, prescription []domain.PrescriptionItem, assessment *domain.RiskAssessment) {
	record := &domain.AuditRecord{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		Prescription: prescription,
		Assessment:   assessment,
		CreatedAt:    time.Now().UTC(),
	}

	var err error
	for attempt := 0; attempt <= o.opts.AuditRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(o.opts.AuditRetryDelay)
		}
		if err = o.audit.LogAudit(ctx, record); err == nil {
			return
		}
	}

	o.logger.WithFields(logrus.Fields{
		"request_id": assessment.RequestID,
		"audit_id":   record.ID,
	}).WithError(err).Error("Audit write failed after bounded retry")
}

// publishAlert notifies the alert channel when the level is
// HIGH/CRITICAL or a food-interaction flag is set. Publish failures are
// logged, never surfaced to the caller.
func (o *Orchestrator) publishAlert(ctx context.Context, prescription []domain.PrescriptionItem, history *domain.PatientHistory, assessment *domain.RiskAssessment) {
	if !assessment.Level.RequiresAlert() && !assessment.DFIFlag {
		return
	}

	event := domain.AlertEvent{
		RequestID:       assessment.RequestID,
		PatientID:       assessment.PatientID,
		Level:           assessment.Level,
		TriggeringDrugs: o.triggeringDrugs(prescription, history, assessment),
		DFIFlag:         assessment.DFIFlag,
		Timestamp:       time.Now().UTC(),
	}

	if err := o.alerts.PublishAlert(ctx, event); err != nil {
		o.logger.WithFields(logrus.Fields{
			"request_id": assessment.RequestID,
			"risk_level": assessment.Level.String(),
		}).WithError(err).Error("Alert publish failed")
	}
}

// triggeringDrugs identifies the drugs behind an alert: allergy
// conflicts first, then drugs with a positive risk contribution, then
// drugs carrying food cautions for pure DFI alerts.
func (o *Orchestrator) triggeringDrugs(prescription []domain.PrescriptionItem, history *domain.PatientHistory, assessment *domain.RiskAssessment) []string {
	if conflicts := o.classifier.AllergyConflicts(prescription, history); len(conflicts) > 0 {
		return conflicts
	}

	var drugs []string
	for _, c := range assessment.Contributors {
		if c.CombinedScore > 0 {
			drugs = append(drugs, c.DrugID)
		}
	}
	if len(drugs) > 0 {
		return drugs
	}

	seen := make(map[string]struct{})
	for _, caution := range assessment.DFICautions {
		for _, item := range prescription {
			if item.Name == caution.Drug {
				if _, ok := seen[item.DrugID]; !ok {
					seen[item.DrugID] = struct{}{}
					drugs = append(drugs, item.DrugID)
				}
			}
		}
	}
	return drugs
}

// compactDDI drops failed pair slots from the response echo.
func compactDDI(ddi []*domain.DDIResult) []domain.DDIResult {
	var out []domain.DDIResult
	for _, d := range ddi {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// flattenDFI flattens per-drug food cautions in prescription order,
// tagging each with the drug's display name.
func flattenDFI(prescription []domain.PrescriptionItem, dfi [][]domain.DFIItem) []domain.DFICaution {
	var cautions []domain.DFICaution
	for i, items := range dfi {
		for _, item := range items {
			cautions = append(cautions, domain.DFICaution{
				Drug:     prescription[i].Name,
				FoodItem: item.FoodItem,
				Advice:   item.Advice,
				Type:     item.Type,
				Reason:   item.Reason,
			})
		}
	}
	return cautions
}

// flattenRemedies flattens per-drug remedy suggestions in prescription
// order, keeping at most three per drug.
func flattenRemedies(prescription []domain.PrescriptionItem, remedies [][]domain.RemedySuggestion) []domain.HomeRemedy {
	var out []domain.HomeRemedy
	for i, suggestions := range remedies {
		if len(suggestions) > maxRemediesPerDrug {
			suggestions = suggestions[:maxRemediesPerDrug]
		}
		for _, r := range suggestions {
			confidence := r.Confidence
			if confidence == 0 {
				confidence = 1.0
			}
			out = append(out, domain.HomeRemedy{
				Drug:           prescription[i].Name,
				Remedy:         r.Remedy,
				Description:    r.Description,
				CautionaryNote: r.CautionaryNote,
				Confidence:     confidence,
			})
		}
	}
	return out
}
