package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/metrics"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/regen"
	"cart-meal-planner/internal/schedule"

	"github.com/gofiber/fiber/v2"
)

// UsageReader reports generator token usage.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Handler serves the planning view.
type Handler struct {
	svc    *planner.Service
	usage  UsageReader
	health func() metrics.Health
	now    func() time.Time
}

func NewHandler(svc *planner.Service, usage UsageReader, health func() metrics.Health) *Handler {
	return &Handler{svc: svc, usage: usage, health: health, now: time.Now}
}

type writeRequest struct {
	Version *int64 `json:"version"`
	Force   bool   `json:"force"`
	Confirm bool   `json:"confirm"`
}

func (r writeRequest) options() (planner.WriteOptions, error) {
	if r.Version == nil && !r.Force {
		return planner.WriteOptions{}, errors.New("version is required unless force is set")
	}
	opts := planner.WriteOptions{
		Force:              r.Force,
		ConfirmDestructive: r.Confirm,
		Source:             schedule.SourcePlanning,
	}
	if r.Version != nil {
		opts.ExpectedVersion = *r.Version
	}
	return opts, nil
}

type slotRef struct {
	Day  string `json:"day"`
	Type string `json:"type"`
}

func (s slotRef) id() (schedule.SlotID, error) {
	return schedule.ParseSlotID(s.Day, s.Type)
}

type slotRequest struct {
	writeRequest
	slotRef
}

type assignRequest struct {
	slotRequest
	Clamp  bool        `json:"clamp"`
	Sketch meal.Sketch `json:"sketch"`
}

type moveRequest struct {
	writeRequest
	From slotRef `json:"from"`
	To   slotRef `json:"to"`
}

type createRequest struct {
	Force   bool        `json:"force"`
	Confirm bool        `json:"confirm"`
	Items   []cart.Item `json:"items"`
	// Text holds one "<qty> [unit] <name>" line per item.
	Text string `json:"text"`
	// HTML is a saved order-confirmation page.
	HTML string `json:"html"`
}

type generateRequest struct {
	writeRequest
	Meals int `json:"meals"`
}

type regenerateRequest struct {
	writeRequest
	Wait bool `json:"wait"`
}

type reportResponse struct {
	planner.View
	Report   *regen.Report `json:"report,omitempty"`
	Problems []string      `json:"problems,omitempty"`
}

func withReport(v planner.View, r *regen.Report) reportResponse {
	resp := reportResponse{View: v, Report: r}
	if r != nil {
		resp.Problems = r.Messages()
	}
	return resp
}

func (h *Handler) ref(c *fiber.Ctx) (planner.PlanRef, error) {
	owner := GetOwner(c)
	if owner == "" {
		return planner.PlanRef{}, fiber.NewError(fiber.StatusUnauthorized, "user not authenticated")
	}
	week := c.Params("week")
	if week == "" || week == "current" {
		return planner.PlanRef{Owner: owner, WeekOf: schedule.WeekOf(h.now())}, nil
	}
	t, err := time.Parse("2006-01-02", week)
	if err != nil {
		return planner.PlanRef{}, fiber.NewError(fiber.StatusBadRequest, "week must be YYYY-MM-DD or current")
	}
	return planner.PlanRef{Owner: owner, WeekOf: t}, nil
}

// Health reports process figures; it needs no token.
func (h *Handler) Health(c *fiber.Ctx) error {
	return Success(c, h.health())
}

// Usage returns generator token totals per day.
func (h *Handler) Usage(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days < 1 || days > 90 {
		days = 7
	}
	usage, err := h.usage.GetDailyUsage(c.UserContext(), days)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to load usage")
	}
	return Success(c, usage)
}

// ListWeeks returns every live week of the caller.
func (h *Handler) ListWeeks(c *fiber.Ctx) error {
	owner := GetOwner(c)
	views, err := h.svc.ListPlans(c.UserContext(), owner)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, views)
}

// GetWeek returns the plan and its version.
func (h *Handler) GetWeek(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetPlan(c.UserContext(), ref)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, v)
}

// CreateWeek builds a week from cart lines given as items, text or HTML.
func (h *Handler) CreateWeek(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	items := req.Items
	switch {
	case len(items) > 0:
	case strings.TrimSpace(req.Text) != "":
		items, err = cart.ParseText(strings.NewReader(req.Text))
	case strings.TrimSpace(req.HTML) != "":
		items, err = cart.ParseHTML(strings.NewReader(req.HTML))
	}
	if err != nil {
		return domainError(c, err)
	}

	v, err := h.svc.CreatePlan(c.UserContext(), ref, items, planner.WriteOptions{
		Force:              req.Force,
		ConfirmDestructive: req.Confirm,
		Source:             schedule.SourcePlanning,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Data: v})
}

func (h *Handler) GenerateWeek(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}

	v, report, err := h.svc.GenerateWeek(c.UserContext(), ref, req.Meals, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, withReport(v, report))
}

func (h *Handler) AssignSlot(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}
	opts.Clamp = req.Clamp
	id, err := req.id()
	if err != nil {
		return domainError(c, err)
	}

	v, cand, err := h.svc.AssignSlot(c.UserContext(), ref, id, req.Sketch, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, fiber.Map{"plan": v.Plan, "version": v.Version, "meal": cand})
}

func (h *Handler) MoveSlot(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}
	from, err := req.From.id()
	if err != nil {
		return domainError(c, err)
	}
	to, err := req.To.id()
	if err != nil {
		return domainError(c, err)
	}

	v, err := h.svc.MoveSlot(c.UserContext(), ref, from, to, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, v)
}

func (h *Handler) ClearSlot(c *fiber.Ctx) error {
	return h.slotWrite(c, func(ctx context.Context, ref planner.PlanRef, id schedule.SlotID, opts planner.WriteOptions) (interface{}, error) {
		return h.svc.ClearSlot(ctx, ref, id, opts)
	})
}

func (h *Handler) ToggleLock(c *fiber.Ctx) error {
	return h.slotWrite(c, func(ctx context.Context, ref planner.PlanRef, id schedule.SlotID, opts planner.WriteOptions) (interface{}, error) {
		v, locked, err := h.svc.ToggleLock(ctx, ref, id, opts)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"plan": v.Plan, "version": v.Version, "locked": locked}, nil
	})
}

func (h *Handler) slotWrite(c *fiber.Ctx, fn func(ctx context.Context, ref planner.PlanRef, id schedule.SlotID, opts planner.WriteOptions) (interface{}, error)) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req slotRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}
	id, err := req.id()
	if err != nil {
		return domainError(c, err)
	}

	data, err := fn(c.UserContext(), ref, id, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, data)
}

func (h *Handler) ClearLocks(c *fiber.Ctx) error {
	return h.planWrite(c, h.svc.ClearAllLocks)
}

func (h *Handler) ResetWeek(c *fiber.Ctx) error {
	return h.planWrite(c, h.svc.ResetWeek)
}

func (h *Handler) DeleteWeek(c *fiber.Ctx) error {
	return h.planWrite(c, h.svc.DeletePlan)
}

func (h *Handler) Undo(c *fiber.Ctx) error {
	return h.planWrite(c, h.svc.Undo)
}

func (h *Handler) planWrite(c *fiber.Ctx, fn func(ctx context.Context, ref planner.PlanRef, opts planner.WriteOptions) (planner.View, error)) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req writeRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}

	v, err := fn(c.UserContext(), ref, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, v)
}

// Regenerate refreshes unlocked slots. By default it returns 202 and keeps
// working in the background; with "wait" it answers when the pass is done.
func (h *Handler) Regenerate(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	var req regenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	opts, err := req.options()
	if err != nil {
		return Error(c, fiber.StatusBadRequest, err.Error())
	}

	if req.Wait {
		v, report, err := h.svc.RegenerateUnlocked(c.UserContext(), ref, opts)
		if err != nil {
			return domainError(c, err)
		}
		return Success(c, withReport(v, report))
	}

	v, err := h.svc.StartRegeneration(c.UserContext(), ref, opts)
	if err != nil {
		return domainError(c, err)
	}
	return Accepted(c, v)
}

func (h *Handler) RegenerationStatus(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	st, err := h.svc.RegenerationStatus(ref)
	if err != nil {
		return domainError(c, err)
	}
	return Success(c, st)
}

func (h *Handler) CancelRegeneration(c *fiber.Ctx) error {
	ref, err := h.ref(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelRegeneration(ref); err != nil {
		return domainError(c, err)
	}
	return Accepted(c, fiber.Map{"cancelled": true})
}
