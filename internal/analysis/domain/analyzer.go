package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/google/uuid"

	"github.com/qvkare/metaguard-snap/internal/etherscan"
	"github.com/qvkare/metaguard-snap/internal/ml"
	"github.com/qvkare/metaguard-snap/internal/observability/metrics"
	"github.com/qvkare/metaguard-snap/internal/phishing"
)

// Rule thresholds: 1 ETH for the value check, 100 gwei for the fee check.
var (
	highValueWei = new(big.Int).SetUint64(params.Ether)
	highFeeWei   = new(big.Int).SetUint64(100 * params.GWei)
)

// ContractLookup provides contract verification evidence.
type ContractLookup interface {
	GetContractInfo(ctx context.Context, address string) etherscan.ContractInfo
}

// PhishingChecker provides address reputation evidence.
type PhishingChecker interface {
	CheckAddress(ctx context.Context, address string) phishing.Result
}

// Scorer provides the model's risk score in [0,1].
type Scorer interface {
	Predict(ctx context.Context, f ml.TransactionFeatures) float64
}

// Analyzer folds rule checks, lookup evidence and the model score into a
// security report. It holds no state across calls beyond the monotonic
// report clock; the lookups own the only shared cache.
type Analyzer struct {
	contracts ContractLookup
	phishing  PhishingChecker
	scorer    Scorer
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	lastTS time.Time
	now    func() time.Time
}

// NewAnalyzer creates the risk aggregator. timeout bounds each of the three
// evidence calls individually; a timed-out lookup degrades to its safe
// default evidence.
func NewAnalyzer(contracts ContractLookup, phishingChecker PhishingChecker, scorer Scorer, timeout time.Duration, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		contracts: contracts,
		phishing:  phishingChecker,
		scorer:    scorer,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// AnalyzeTransaction produces a security report for tx. It never fails: a
// structurally unusable transaction or an unexpected panic anywhere in the
// pipeline yields the fail-closed high-risk report instead, so the
// confirmation flow always has something to show.
func (a *Analyzer) AnalyzeTransaction(ctx context.Context, tx Transaction) (report *SecurityReport) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("transaction analysis panicked", "panic", r)
			report = a.failureReport()
		}
		metrics.RecordAnalysis(string(report.Risk))
	}()

	rep, err := a.analyze(ctx, tx)
	if err != nil {
		a.logger.Error("transaction analysis failed", "error", err)
		return a.failureReport()
	}
	return rep
}

func (a *Analyzer) analyze(ctx context.Context, tx Transaction) (*SecurityReport, error) {
	var (
		warnings        []string
		recommendations []string
		checks          []SecurityCheck
	)

	// Rule checks. Each appends its warning, recommendation and check entry
	// together so every failed check has a matching warning.

	if tx.IsContractCreation() {
		warnings = append(warnings, "This transaction creates a new contract")
		recommendations = append(recommendations, "Review the contract code carefully before deployment")
		checks = append(checks, SecurityCheck{
			Name:     "Contract Creation",
			Passed:   false,
			Severity: SeverityHigh,
			Details:  "Transaction creates a new contract",
		})
	}

	value, err := parseWei(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("parsing value: %w", err)
	}
	if value.Cmp(highValueWei) > 0 {
		warnings = append(warnings, "High value transaction")
		recommendations = append(recommendations, "Double check the recipient address")
		checks = append(checks, SecurityCheck{
			Name:     "Value Check",
			Passed:   false,
			Severity: SeverityHigh,
			Details:  "Transaction value exceeds 1 ETH",
		})
	}

	// The transaction kind selects which fee field is checked, not both.
	feeField, feeDetails := tx.GasPrice, "Gas price exceeds 100 Gwei"
	if tx.IsEIP1559() {
		feeField, feeDetails = *tx.MaxFeePerGas, "Max fee per gas exceeds 100 Gwei"
	}
	fee, err := parseWei(feeField)
	if err != nil {
		return nil, fmt.Errorf("parsing gas fee: %w", err)
	}
	if fee.Cmp(highFeeWei) > 0 {
		warnings = append(warnings, "High gas fee")
		recommendations = append(recommendations, "Consider waiting for lower gas prices")
		checks = append(checks, SecurityCheck{
			Name:     "Gas Price Check",
			Passed:   false,
			Severity: SeverityMedium,
			Details:  feeDetails,
		})
	}

	// Evidence gathering. The three reads are independent, so they run
	// concurrently and the fold waits for all of them to settle.
	var (
		contractInfo *etherscan.ContractInfo
		phishingRes  *phishing.Result
		mlScore      float64
	)

	if tx.To != nil {
		to := *tx.To

		var (
			wg       sync.WaitGroup
			info     etherscan.ContractInfo
			rep      phishing.Result
			panicked any
			panicMu  sync.Mutex
		)
		// A panic in an evidence goroutine must surface to the caller's
		// recover instead of killing the process.
		gather := func(fn func(ctx context.Context)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicked == nil {
						panicked = r
					}
					panicMu.Unlock()
				}
			}()
			ectx, cancel := a.evidenceContext(ctx)
			defer cancel()
			fn(ectx)
		}

		wg.Add(3)
		go gather(func(ctx context.Context) {
			info = a.contracts.GetContractInfo(ctx, to)
		})
		go gather(func(ctx context.Context) {
			rep = a.phishing.CheckAddress(ctx, to)
		})
		go gather(func(ctx context.Context) {
			mlScore = a.scorer.Predict(ctx, ml.TransactionFeatures{
				Value:                tx.Value,
				MaxFeePerGas:         derefOrEmpty(tx.MaxFeePerGas),
				MaxPriorityFeePerGas: derefOrEmpty(tx.MaxPriorityFeePerGas),
				ContractCreation:     tx.IsContractCreation(),
				HasData:              tx.Data != "" && tx.Data != "0x",
			})
		})
		wg.Wait()

		if panicked != nil {
			panic(panicked)
		}

		contractInfo = &info
		phishingRes = &rep

		if !info.Verified {
			warnings = append(warnings, "Unverified contract")
			recommendations = append(recommendations, "Exercise caution when interacting with unverified contracts")
			checks = append(checks, SecurityCheck{
				Name:     "Contract Verification",
				Passed:   false,
				Severity: SeverityHigh,
				Details:  "Contract is not verified on Etherscan",
			})
		}

		if rep.IsPhishing {
			warnings = append(warnings, fmt.Sprintf("Potential phishing risk: %s", rep.Reason))
			recommendations = append(recommendations, "Avoid interacting with this address")
			details := rep.Reason
			if details == "" {
				details = "Address identified as potential phishing risk"
			}
			checks = append(checks, SecurityCheck{
				Name:     "Phishing Detection",
				Passed:   false,
				Severity: SeverityHigh,
				Details:  details,
			})
		}
	}

	isPhishing := phishingRes != nil && phishingRes.IsPhishing
	assessment := RiskAssessment{
		RiskLevel: riskLevel(len(warnings), isPhishing, mlScore),
		RiskScore: mlScore,
		Details:   warnings,
	}
	recommendations = append(recommendations, recommendationsFor(assessment)...)

	return &SecurityReport{
		ID:              uuid.NewString(),
		Risk:            assessment.RiskLevel,
		Warnings:        warnings,
		Recommendations: recommendations,
		SecurityChecks:  checks,
		ContractInfo:    contractInfo,
		PhishingResults: phishingRes,
		RiskAssessment:  assessment,
		Timestamp:       a.timestamp(),
	}, nil
}

// riskLevel is the canonical decision rule. It is evaluated with
// short-circuit semantics in this exact order; the first satisfied branch
// wins with no accumulation of partial scores.
func riskLevel(warningCount int, isPhishing bool, mlScore float64) RiskLevel {
	switch {
	case isPhishing || mlScore > 0.8 || warningCount >= 3:
		return RiskHigh
	case mlScore > 0.5 || warningCount >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// recommendationsFor derives recommendations from the computed assessment.
// Generation is additive across triggers; duplicate text is acceptable.
func recommendationsFor(assessment RiskAssessment) []string {
	var recs []string

	if assessment.RiskLevel == RiskHigh {
		recs = append(recs, "Review transaction carefully before proceeding")
		recs = append(recs, "Consider using a hardware wallet for added security")
	}

	if assessment.RiskScore > 0.5 {
		recs = append(recs, "Verify contract source code on Etherscan")
		recs = append(recs, "Check contract audit reports if available")
	}

	for _, detail := range assessment.Details {
		if strings.Contains(detail, "Potential phishing") {
			recs = append(recs, "Do not proceed with the transaction")
			recs = append(recs, "Report the address to the community")
			break
		}
	}

	return recs
}

// failureReport is the fail-closed fallback: when analysis itself breaks,
// over-warning beats silently passing a risky transaction.
func (a *Analyzer) failureReport() *SecurityReport {
	warnings := []string{"Error analyzing transaction"}
	return &SecurityReport{
		ID:              uuid.NewString(),
		Risk:            RiskHigh,
		Warnings:        warnings,
		Recommendations: []string{"Please try again or contact support if the issue persists"},
		SecurityChecks:  []SecurityCheck{},
		RiskAssessment: RiskAssessment{
			RiskLevel: RiskHigh,
			RiskScore: 1,
			Details:   warnings,
		},
		Timestamp: a.timestamp(),
	}
}

// evidenceContext bounds one evidence call. It detaches from the caller's
// cancellation so an abandoned analysis still lets in-flight lookups finish
// and populate the cache, while the timeout keeps them bounded.
func (a *Analyzer) evidenceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
}

// timestamp returns a wall-clock reading that never decreases across calls
// within the process, even if the system clock steps backwards.
func (a *Analyzer) timestamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Before(a.lastTS) {
		now = a.lastTS
	}
	a.lastTS = now
	return now
}

// parseWei parses a decimal uint256 string; empty reads as zero.
func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not an unsigned decimal integer: %q", s)
	}
	return n, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
