package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

type EmployeeService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewEmployeeService(db *sql.DB) *EmployeeService {
	return &EmployeeService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateEmployeeRequest is the employee creation payload.
// @Description Employee creation request
type CreateEmployeeRequest struct {
	StaffNumber   string           `json:"staff_number" validate:"required"`
	FirstName     string           `json:"first_name" validate:"required,min=2"`
	LastName      string           `json:"last_name" validate:"required,min=2"`
	Email         string           `json:"email" validate:"required,email"`
	Position      string           `json:"position" validate:"required"`
	MonthlySalary *decimal.Decimal `json:"monthly_salary,omitempty"`
	HireDate      time.Time        `json:"hire_date" validate:"required"`
	BranchID      *uuid.UUID       `json:"branch_id,omitempty"`
	DepartmentID  *uuid.UUID       `json:"department_id,omitempty"`
}

// CreateEmployee registers a new employee record
// @Summary Create employee
// @Tags employees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEmployeeRequest true "Employee data"
// @Success 201 {object} models.Employee
// @Failure 400 {object} ErrorResponse
// @Router /employees [post]
func (s *EmployeeService) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateEmployeeRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.MonthlySalary != nil && !req.MonthlySalary.IsPositive() {
		SendErrorResponse(w, "Monthly salary must be positive when set", http.StatusBadRequest, nil)
		return
	}

	now := time.Now()
	employee := models.Employee{
		ID:            uuid.New(),
		CompanyID:     companyID,
		BranchID:      req.BranchID,
		DepartmentID:  req.DepartmentID,
		StaffNumber:   req.StaffNumber,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Position:      req.Position,
		MonthlySalary: req.MonthlySalary,
		HireDate:      req.HireDate,
		Status:        models.EmploymentActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.Exec(`
		INSERT INTO employees (id, company_id, branch_id, department_id, staff_number,
			first_name, last_name, email, position, monthly_salary, hire_date, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		employee.ID, employee.CompanyID, employee.BranchID, employee.DepartmentID,
		employee.StaffNumber, employee.FirstName, employee.LastName, employee.Email,
		employee.Position, employee.MonthlySalary, employee.HireDate, employee.Status,
		employee.CreatedAt, employee.UpdatedAt)
	if err != nil {
		log.Printf("[EMPLOYEE] Failed to create employee %s: %v", req.StaffNumber, err)
		SendErrorResponse(w, "Failed to create employee", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[EMPLOYEE] Created employee %s (%s) for company %s", employee.ID, req.StaffNumber, companyID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(employee)
}

// GetEmployee fetches a single employee
// @Summary Get employee
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} models.Employee
// @Failure 404 {object} ErrorResponse
// @Router /employees/{employeeId} [get]
func (s *EmployeeService) GetEmployee(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	employeeID, err := uuid.Parse(chi.URLParam(r, "employeeId"))
	if err != nil {
		SendErrorResponse(w, "Invalid employee id", http.StatusBadRequest, nil)
		return
	}

	var e models.Employee
	err = s.db.QueryRow(`
		SELECT id, company_id, branch_id, department_id, staff_number, first_name, last_name,
			email, position, monthly_salary, hire_date, status, created_at, updated_at
		FROM employees
		WHERE id = $1 AND company_id = $2`, employeeID, companyID).
		Scan(&e.ID, &e.CompanyID, &e.BranchID, &e.DepartmentID, &e.StaffNumber, &e.FirstName,
			&e.LastName, &e.Email, &e.Position, &e.MonthlySalary, &e.HireDate, &e.Status,
			&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Employee not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[EMPLOYEE] Failed to fetch employee %s: %v", employeeID, err)
		SendErrorResponse(w, "Failed to fetch employee", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(e)
}

// ListEmployees lists employees for the company
// @Summary List employees
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Employee
// @Router /employees [get]
func (s *EmployeeService) ListEmployees(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, company_id, branch_id, department_id, staff_number, first_name, last_name,
			email, position, monthly_salary, hire_date, status, created_at, updated_at
		FROM employees
		WHERE company_id = $1
		ORDER BY staff_number ASC`, companyID)
	if err != nil {
		log.Printf("[EMPLOYEE] Failed to list employees for company %s: %v", companyID, err)
		SendErrorResponse(w, "Failed to list employees", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.BranchID, &e.DepartmentID, &e.StaffNumber,
			&e.FirstName, &e.LastName, &e.Email, &e.Position, &e.MonthlySalary, &e.HireDate,
			&e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to list employees", http.StatusInternalServerError, nil)
			return
		}
		employees = append(employees, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(employees)
}

// DeactivateEmployee marks an employee as inactive
// @Summary Deactivate employee
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /employees/{employeeId}/deactivate [put]
func (s *EmployeeService) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	employeeID, err := uuid.Parse(chi.URLParam(r, "employeeId"))
	if err != nil {
		SendErrorResponse(w, "Invalid employee id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.Exec(`
		UPDATE employees
		SET status = $1, updated_at = $2
		WHERE id = $3 AND company_id = $4`,
		models.EmploymentInactive, time.Now(), employeeID, companyID)
	if err != nil {
		log.Printf("[EMPLOYEE] Failed to deactivate employee %s: %v", employeeID, err)
		SendErrorResponse(w, "Failed to deactivate employee", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Employee not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[EMPLOYEE] Deactivated employee %s", employeeID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Employee deactivated"})
}
