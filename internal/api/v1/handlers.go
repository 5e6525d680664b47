package apiv1

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/brackets"
	"github.com/roamfox/roamfox/internal/pkg/catalogsync"
	"github.com/roamfox/roamfox/internal/pkg/comparison"
	"github.com/roamfox/roamfox/internal/pkg/failover"
	"github.com/roamfox/roamfox/internal/pkg/pricing"
)

var validate = validator.New()

// APIServer exposes the catalog core's trigger operations to the admin back
// office. It owns no business rules; every operation delegates to the
// engine packages and maps their error taxonomy onto HTTP statuses.
type APIServer struct {
	sync       *catalogsync.Service
	comparison *comparison.Engine
	failover   *failover.Selector
	brackets   *brackets.Generator
	pricing    *pricing.Service
}

// NewAPIServer creates the API server over the engine services.
func NewAPIServer(
	sync *catalogsync.Service,
	cmp *comparison.Engine,
	fo *failover.Selector,
	gen *brackets.Generator,
	pricingSvc *pricing.Service,
) *APIServer {
	return &APIServer{
		sync:       sync,
		comparison: cmp,
		failover:   fo,
		brackets:   gen,
		pricing:    pricingSvc,
	}
}

// RegisterHandlers attaches all v1 routes to the given router group.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Post("/providers/:id/sync", s.PostProviderSync)
	r.Post("/sync", s.PostSyncAll)
	r.Post("/comparison/run", s.PostComparisonRun)
	r.Get("/brackets/preview", s.GetBracketsPreview)
	r.Post("/brackets/generate", s.PostBracketsGenerate)
	r.Put("/packages/:id/price", s.PutPackagePrice)
	r.Get("/failover", s.GetFailoverOrder)
}

// PostProviderSync triggers an on-demand sync for one provider. A partial
// failure still returns the processed-so-far counts next to the error.
func (s *APIServer) PostProviderSync(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid provider id")
	}

	result, syncErr := s.sync.SyncProvider(c.Context(), uint(id))
	if syncErr != nil {
		if result == nil {
			return errorResponse(c, syncErr)
		}
		// Sync partially failed: report counts alongside the error.
		return c.Status(statusFor(syncErr)).JSON(fiber.Map{
			"error":  errorCode(syncErr),
			"result": result,
		})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// PostSyncAll triggers a concurrent sync of every enabled provider.
func (s *APIServer) PostSyncAll(c *fiber.Ctx) error {
	results, err := s.sync.SyncAll(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"results": results})
}

// PostComparisonRun triggers a best-price comparison run.
func (s *APIServer) PostComparisonRun(c *fiber.Ctx) error {
	result, err := s.comparison.RunComparison(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

type bracketRequest struct {
	Currency string `json:"currency" validate:"required,len=3,alpha"`
	StepSize string `json:"step_size" validate:"required"`
}

// GetBracketsPreview computes a bracket proposal without persisting it.
func (s *APIServer) GetBracketsPreview(c *fiber.Ctx) error {
	currency := c.Query("currency")
	step, err := decimal.NewFromString(c.Query("step"))
	if err != nil {
		return badRequest(c, "invalid step size")
	}

	proposed, err := s.brackets.Preview(c.Context(), currency, step)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"brackets": proposed})
}

// PostBracketsGenerate persists a new bracket generation for a currency.
func (s *APIServer) PostBracketsGenerate(c *fiber.Ctx) error {
	var req bracketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}
	step, err := decimal.NewFromString(req.StepSize)
	if err != nil {
		return badRequest(c, "invalid step size")
	}

	generated, err := s.brackets.Generate(c.Context(), req.Currency, step)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"brackets": generated})
}

type priceOverrideRequest struct {
	SellPrice string `json:"sell_price" validate:"required"`
}

// PutPackagePrice applies an explicit admin price override to one package.
// Overrides below the provider's margin floor are rejected, never clamped.
func (s *APIServer) PutPackagePrice(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid package id")
	}
	var req priceOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}
	price, err := decimal.NewFromString(req.SellPrice)
	if err != nil {
		return badRequest(c, "invalid sell price")
	}

	if err := s.pricing.ApplyOverride(c.Context(), uint(id), price); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// GetFailoverOrder returns the ordered provider slugs for one equivalence
// group, used by fulfillment when the first-choice provider fails.
func (s *APIServer) GetFailoverOrder(c *fiber.Ctx) error {
	groupKey := c.Query("group")
	if groupKey == "" {
		return badRequest(c, "missing group key")
	}

	order, err := s.failover.SelectProviderOrder(c.Context(), groupKey)
	if err != nil {
		return errorResponse(c, err)
	}

	slugs := make([]string, 0, len(order))
	for _, provider := range order {
		slugs = append(slugs, provider.Slug)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"providers": slugs})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

// errorResponse maps the core error taxonomy onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": errorCode(err), "message": err.Error()})
}

func statusFor(err error) int {
	var (
		validation  *apperr.ValidationError
		notFound    *apperr.NotFoundError
		conflict    *apperr.ConflictError
		provider    *apperr.ProviderError
		unavailable *apperr.ServiceUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.As(err, &provider):
		return fiber.StatusBadGateway
	case errors.As(err, &unavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var (
		validation  *apperr.ValidationError
		notFound    *apperr.NotFoundError
		conflict    *apperr.ConflictError
		provider    *apperr.ProviderError
		unavailable *apperr.ServiceUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &provider):
		return "provider_error"
	case errors.As(err, &unavailable):
		return "service_unavailable"
	default:
		return "internal_server_error"
	}
}
