package proposalmeterscreate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const FunctionName = "crm.proposal-meters.create"

const (
	defaultMaxFileBytes    = 25 << 20
	defaultDownloadTimeout = 30 * time.Second
	defaultReplayTTL       = 24 * time.Hour
)

type Handler struct {
	connector crmaccess.Connector
	profiles  crmaccess.ProfileReader
	service   *Service
	replay    *replayStore
	lockHold  time.Duration
	logger    logger.Logger
}

type HandlerOptions struct {
	AppConfig  *config.Config
	Connector  crmaccess.Connector
	Profiles   crmaccess.ProfileReader
	Downloader Downloader
	// Redis enables requestId replay; nil disables it.
	Redis  redis.Cmdable
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	cfg := opts.AppConfig
	if cfg == nil {
		cfg = &config.Config{}
	}
	wf := cfg.Workflow

	svc := &Service{
		downloader:      opts.Downloader,
		maxFileBytes:    wf.MaxFileBytes,
		downloadTimeout: config.GetDuration(wf.DownloadTimeout),
	}
	if svc.maxFileBytes <= 0 {
		svc.maxFileBytes = defaultMaxFileBytes
	}
	if svc.downloadTimeout <= 0 {
		svc.downloadTimeout = defaultDownloadTimeout
	}

	h := &Handler{
		connector: opts.Connector,
		profiles:  opts.Profiles,
		service:   svc,
		lockHold:  config.GetDuration(config.GetFunctionConfig(cfg, FunctionName).Timeout),
		logger:    opts.Logger,
	}
	if h.lockHold <= 0 {
		h.lockHold = time.Minute
	}
	if opts.Redis != nil {
		ttl := time.Duration(wf.IdempotencyTTL) * time.Second
		if ttl <= 0 {
			ttl = defaultReplayTTL
		}
		h.replay = &replayStore{redis: opts.Redis, ttl: ttl}
	}
	return h
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Create or reuse metering points, link them to a proposal and attach their files",
		Category:    "crm",
		Roles:       []string{auth.RoleAgent, auth.RoleAdmin},
		UsesCRM:     true,
		ErrorCodes: []errs.ErrorCode{
			errs.ErrCodeValidationFailed,
			errs.ErrCodeNotFound,
			errs.ErrCodeAlreadyExists,
			errs.ErrCodePermissionDenied,
			errs.ErrCodeSessionExpired,
		},
	}
}

func (h *Handler) Schema() *validation.Schema { return inputSchema }

func (h *Handler) Invoke(ctx context.Context, req *callable.Request) (interface{}, error) {
	var input Input
	if err := req.Decode(&input); err != nil {
		return nil, err
	}
	return h.Execute(ctx, req, &input)
}

func (h *Handler) Execute(ctx context.Context, req *callable.Request, input *Input) (*Output, error) {
	log := logger.FromContext(ctx, h.logger).WithFields(map[string]interface{}{
		"proposalId": input.ProposalID,
		"meters":     len(input.Meters),
	})

	if err := checkMeters(input.Meters); err != nil {
		return nil, err
	}

	uid := req.Caller.UID
	fp := fingerprint(input)
	if input.RequestID != "" && h.replay != nil {
		if prev, err := h.replay.load(ctx, uid, input.RequestID); err != nil {
			log.Warn("Replay lookup failed", map[string]interface{}{"requestId": input.RequestID, "error": err.Error()})
		} else if prev != nil {
			if prev.Fingerprint != fp {
				conflict := errs.NewAlreadyExistsError("request", input.RequestID)
				conflict.Details = "requestId " + input.RequestID + " was already used with a different payload"
				return nil, conflict
			}
			log.Info("Replaying completed request", map[string]interface{}{"requestId": input.RequestID})
			prev.Output.Replayed = true
			return prev.Output, nil
		}

		locked, err := h.replay.lock(ctx, uid, input.RequestID, h.lockHold)
		switch {
		case err != nil:
			log.Warn("Replay lock unavailable", map[string]interface{}{"requestId": input.RequestID, "error": err.Error()})
		case !locked:
			return nil, errs.NewAlreadyExistsError("in-flight request", input.RequestID)
		default:
			defer func() {
				if err := h.replay.unlock(context.WithoutCancel(ctx), uid, input.RequestID); err != nil {
					log.Warn("Replay unlock failed", map[string]interface{}{"error": err.Error()})
				}
			}()
		}
	}

	access, err := crmaccess.Open(ctx, h.connector, h.profiles, req)
	if err != nil {
		return nil, err
	}
	proposal, err := access.LoadProposal(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}

	out := h.service.run(ctx, access.Client, proposal.ID, input.Meters, log)

	if out.Success && input.RequestID != "" && h.replay != nil {
		if err := h.replay.save(context.WithoutCancel(ctx), uid, input.RequestID, fp, out); err != nil {
			log.Warn("Failed to store result for replay", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("Proposal meter workflow finished", map[string]interface{}{
		"success":   out.Success,
		"completed": len(out.Items),
	})
	return out, nil
}
