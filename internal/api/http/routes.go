package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
	"github.com/i474232898/solar-radiation-ingestion/internal/scheduler"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
	"github.com/i474232898/solar-radiation-ingestion/internal/store"
)

var validate = validator.New()

// RunHistory is the read side of the run log.
type RunHistory interface {
	Latest() (pipeline.RunReport, error)
	List(limit int) []pipeline.RunReport
	Get(id string) (pipeline.RunReport, error)
}

// RunTrigger starts background runs.
type RunTrigger interface {
	Trigger(trigger pipeline.Trigger) (string, error)
}

// RecordQuerier reads loaded records back.
type RecordQuerier interface {
	QueryRecords(ctx context.Context, from, to time.Time, limit int) ([]store.StoredRecord, error)
}

// Deps are the services the handlers use.
type Deps struct {
	Service  string
	History  RunHistory
	Runner   RunTrigger
	Records  RecordQuerier
	Gatherer prometheus.Gatherer
}

// ErrorHandler renders every handler error as {error, message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": deps.Service,
		})
	})

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		var q runsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"runs": deps.History.List(q.Limit),
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		report, err := deps.History.Latest()
		if err != nil {
			return runLookupError(err)
		}
		return c.JSON(report)
	})

	v1.Get("/runs/:id", func(c *fiber.Ctx) error {
		report, err := deps.History.Get(c.Params("id"))
		if err != nil {
			return runLookupError(err)
		}
		return c.JSON(report)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		id, err := deps.Runner.Trigger(pipeline.TriggerManual)
		if err != nil {
			if errors.Is(err, scheduler.ErrRunInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start run")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id})
	})

	v1.Get("/records", func(c *fiber.Ctx) error {
		var q recordsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := deps.Records.QueryRecords(c.UserContext(), q.From, q.To, q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query records")
		}
		if records == nil {
			records = []store.StoredRecord{}
		}

		return c.JSON(fiber.Map{
			"from":    q.From,
			"to":      q.To,
			"count":   len(records),
			"records": records,
		})
	})
}

func runLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "run not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read run history")
}

// runsQuery holds query parameters for the run listing.
type runsQuery struct {
	Limit int `validate:"gte=1,lte=100"`
}

func (q *runsQuery) bind(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	q.Limit = limit
	return nil
}

// recordsQuery holds query parameters for the records endpoint.
type recordsQuery struct {
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required,gtefield=From"`
	Limit int       `validate:"gte=1,lte=5000"`
}

func (q *recordsQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	limit, err := queryInt(c, "limit", 1000)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	q.Limit = limit
	return nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key + "; must be an integer")
	}
	return n, nil
}

// parseTime accepts RFC3339, the forecast's local layout (read as UTC) or
// unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(solar.TimeLayout, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, 2006-01-02T15:04 or unix seconds")
}
