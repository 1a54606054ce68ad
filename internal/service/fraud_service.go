package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/models"
	"github.com/opensalaries/teacherpay-api/pkg/config"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

// IPChecker is the fraud-signal capability: classify one IP address.
// Implementations may fail; the pipeline only ever sees them through the
// fail-open FraudService below.
type IPChecker interface {
	Check(ctx context.Context, ip string) (models.FraudSignals, error)
}

// FraudService annotates submissions with IP reputation flags. The
// detailed reputation provider is authoritative; the simpler block-list
// provider is consulted only when the detailed one is unconfigured or
// errors. Signals never fails: a reputation outage must not block the
// submission pipeline, so every failure collapses to neutral defaults.
type FraudService struct {
	checkers   []IPChecker
	reputation *ReputationProvider
	logger     *zap.Logger
}

// NewFraudService wires the configured providers in precedence order.
func NewFraudService(cfg config.FraudConfig, logger *zap.Logger) *FraudService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FraudService{logger: logger}
	if cfg.ReputationAPIKey != "" {
		svc.reputation = NewReputationProvider(cfg)
		svc.checkers = append(svc.checkers, svc.reputation)
	}
	if cfg.BlocklistAPIKey != "" {
		svc.checkers = append(svc.checkers, NewBlocklistProvider(cfg))
	}
	return svc
}

// Signals classifies an IP, failing open to all-false flags on any
// provider error, missing configuration, or empty input.
func (s *FraudService) Signals(ctx context.Context, ip string) models.FraudSignals {
	defaults := models.FraudSignals{IPAddress: ip}
	if ip == "" {
		return defaults
	}
	for _, checker := range s.checkers {
		signals, err := checker.Check(ctx, ip)
		if err != nil {
			s.logger.Warn("ip reputation check failed", zap.String("ip", ip), zap.Error(err))
			continue
		}
		signals.IPAddress = ip
		return signals
	}
	return defaults
}

// Lookup returns the detailed provider's complete payload for admin deep
// inspection. Unlike Signals this fails loudly: it is diagnostic, not
// gating.
func (s *FraudService) Lookup(ctx context.Context, ip string) (*models.IPReputation, error) {
	if s.reputation == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ip reputation provider not configured")
	}
	if ip == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ip address required")
	}
	reputation, err := s.reputation.Lookup(ctx, ip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ip reputation lookup failed")
	}
	return reputation, nil
}

// ReputationProvider calls the detailed reputation API
// (GET {base}?q={ip}&key={key}, ipapi.is payload shape).
type ReputationProvider struct {
	cfg    config.FraudConfig
	client *http.Client
}

// NewReputationProvider constructs the provider with a bounded client.
func NewReputationProvider(cfg config.FraudConfig) *ReputationProvider {
	return &ReputationProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Check implements IPChecker.
func (p *ReputationProvider) Check(ctx context.Context, ip string) (models.FraudSignals, error) {
	reputation, err := p.Lookup(ctx, ip)
	if err != nil {
		return models.FraudSignals{}, err
	}

	signals := models.FraudSignals{
		IsVPN:    reputation.IsVPN,
		IsTor:    reputation.IsTor,
		IsProxy:  reputation.IsProxy,
		IsAbuser: reputation.IsAbuser,
	}
	signals.Flagged = signals.IsVPN || signals.IsTor || signals.IsProxy || signals.IsAbuser
	if reputation.Location != nil && reputation.Location.Country != "" {
		country := reputation.Location.Country
		signals.IPCountry = &country
	}
	return signals, nil
}

// Lookup fetches and decodes the full reputation payload.
func (p *ReputationProvider) Lookup(ctx context.Context, ip string) (*models.IPReputation, error) {
	url := fmt.Sprintf("%s?q=%s&key=%s", p.cfg.ReputationBaseURL, ip, p.cfg.ReputationAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build reputation request: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reputation provider: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reputation provider returned status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read reputation payload: %w", err)
	}

	var reputation models.IPReputation
	if err := json.Unmarshal(body, &reputation); err != nil {
		return nil, fmt.Errorf("decode reputation payload: %w", err)
	}
	reputation.Raw = json.RawMessage(body)
	return &reputation, nil
}

// BlocklistProvider calls the simple block-classification API
// (GET {base}/{ip} with an X-Key header; block 0=clean, 1=flagged,
// 2=undetermined).
type BlocklistProvider struct {
	cfg    config.FraudConfig
	client *http.Client
}

// NewBlocklistProvider constructs the provider with a bounded client.
func NewBlocklistProvider(cfg config.FraudConfig) *BlocklistProvider {
	return &BlocklistProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Check implements IPChecker. The block-list API cannot distinguish VPN
// from proxy from datacenter, so a flagged classification sets the proxy
// flag only.
func (p *BlocklistProvider) Check(ctx context.Context, ip string) (models.FraudSignals, error) {
	url := fmt.Sprintf("%s/%s", p.cfg.BlocklistBaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.FraudSignals{}, fmt.Errorf("build blocklist request: %w", err)
	}
	req.Header.Set("X-Key", p.cfg.BlocklistAPIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return models.FraudSignals{}, fmt.Errorf("call blocklist provider: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.FraudSignals{}, fmt.Errorf("blocklist provider returned status %d", res.StatusCode)
	}

	var classification models.BlockClassification
	if err := json.NewDecoder(res.Body).Decode(&classification); err != nil {
		return models.FraudSignals{}, fmt.Errorf("decode blocklist payload: %w", err)
	}

	signals := models.FraudSignals{
		IsProxy: classification.Block == models.BlockFlagged,
		Flagged: classification.Block == models.BlockFlagged,
	}
	if classification.CountryName != "" {
		country := classification.CountryName
		signals.IPCountry = &country
	}
	return signals, nil
}
