package telemetry

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "phbiling-api"

// Billing attributes set on API request spans
const (
	AttrResource   = attribute.Key("billing.resource")
	AttrInvoiceID  = attribute.Key("invoice.id")
	AttrCustomerID = attribute.Key("customer.id")
	AttrPackageID  = attribute.Key("package.id")
	AttrTemplate   = attribute.Key("template.type")
	AttrUserID     = attribute.Key("user.id")
	AttrStaffID    = attribute.Key("staff.user_id")
	AttrStaffRole  = attribute.Key("staff.role")
	AttrErrorClass = attribute.Key("billing.error_class")
)

// resourceParams names the route param each resource is addressed by
var resourceParams = map[string]struct {
	param string
	key   attribute.Key
}{
	"invoices":  {"id", AttrInvoiceID},
	"checkout":  {"id", AttrInvoiceID},
	"customers": {"id", AttrCustomerID},
	"packages":  {"id", AttrPackageID},
	"users":     {"id", AttrUserID},
	"templates": {"type", AttrTemplate},
}

const errorClassLocal = "telemetry.errorClass"

// RequestTracing starts a server span per request. Once the handler returns,
// the span is named after the matched route and tagged with the billing
// resource, the invoice or customer it targets and the calling staff role.
// Only 5xx answers mark the span as failed; 4xx carry an error class.
func RequestTracing() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		ctx := propagator.Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-ID", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		span.SetAttributes(requestAttributes(c, route)...)

		status := c.Response().StatusCode()
		if err != nil {
			// the app error handler writes the response after this returns
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))

		if class, ok := c.Locals(errorClassLocal).(string); ok {
			span.SetAttributes(AttrErrorClass.String(class))
		}
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

// RecordRequestError tags the request span with the class of a domain error
// the API answered with. Server errors are also recorded on the span.
func RecordRequestError(c *fiber.Ctx, class string, status int, err error) {
	c.Locals(errorClassLocal, class)
	if status >= fiber.StatusInternalServerError {
		trace.SpanFromContext(c.UserContext()).RecordError(err)
	}
}

// requestAttributes derives the billing attributes of a /v1 route
func requestAttributes(c *fiber.Ctx, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if rest, ok := strings.CutPrefix(route, "/v1/"); ok {
		resource, _, _ := strings.Cut(rest, "/")
		if resource != "" {
			attrs = append(attrs, AttrResource.String(resource))
		}
		if p, ok := resourceParams[resource]; ok {
			if v := c.Params(p.param); v != "" {
				attrs = append(attrs, p.key.String(v))
			}
		}
	}

	if role, ok := c.Locals(middleware.RoleKey).(string); ok && role != "" {
		attrs = append(attrs, AttrStaffRole.String(role))
	}
	if id, ok := c.Locals(middleware.UserIDKey).(string); ok && id != "" {
		attrs = append(attrs, AttrStaffID.String(id))
	}
	return attrs
}
