package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/service"
)

// CustomerHandler handles the customer directory and package catalogue
type CustomerHandler struct {
	customers *service.CustomerService
	packages  *service.PackageService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers *service.CustomerService, packages *service.PackageService) *CustomerHandler {
	return &CustomerHandler{customers: customers, packages: packages}
}

// ListCustomers handles GET /v1/customers
// Query params: search (name or username), status
func (h *CustomerHandler) ListCustomers(c *fiber.Ctx) error {
	status := domain.CustomerStatus(strings.ToUpper(c.Query("status")))
	list, err := h.customers.List(c.UserContext(), c.Query("search"), status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetCustomer handles GET /v1/customers/:id
func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.customers.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(customer)
}

// CreateCustomer handles POST /v1/customers
func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	var in service.CustomerInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	customer, err := h.customers.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}

// UpdateCustomer handles PUT /v1/customers/:id
func (h *CustomerHandler) UpdateCustomer(c *fiber.Ctx) error {
	var in service.CustomerInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	customer, err := h.customers.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(customer)
}

// ToggleCustomerStatus handles POST /v1/customers/:id/toggle-status
func (h *CustomerHandler) ToggleCustomerStatus(c *fiber.Ctx) error {
	customer, err := h.customers.ToggleStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(customer)
}

// ListPackages handles GET /v1/packages
func (h *CustomerHandler) ListPackages(c *fiber.Ctx) error {
	list, err := h.packages.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// CreatePackage handles POST /v1/packages
func (h *CustomerHandler) CreatePackage(c *fiber.Ctx) error {
	var in service.PackageInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	pkg, err := h.packages.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pkg)
}

// UpdatePackage handles PUT /v1/packages/:id
func (h *CustomerHandler) UpdatePackage(c *fiber.Ctx) error {
	var in service.PackageInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	pkg, err := h.packages.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pkg)
}
