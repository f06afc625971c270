package core

// validation.go checks one record before it reaches the resolver.
//
// Rules are struct tags on rowInput evaluated by go-playground/validator.
// The validator is built once and only read afterwards, so a RowValidator
// is safe for concurrent use and one row's result never depends on another.

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/studentimport/internal/tabular"
	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error for a column.
type ValidationError struct {
	Field   string // Column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors is the error returned for an invalid row.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return strings.Join(parts, "; ")
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // List of validation errors (empty if Valid)
}

// Err returns the errors as a ValidationErrors, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return ValidationErrors(r.Errors)
}

// Evaluation types accepted in the evaluation_type column.
const (
	EvaluationProposalDefense = "proposal_defense"
	EvaluationPreViva         = "pre_viva"
	EvaluationViva            = "viva"
	EvaluationProgress        = "progress"
)

var (
	matricPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/\-]{2,31}$`)
	staffNoPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-]{2,19}$`)
	progCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{1,19}$`)
	acadYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)
	yearPattern     = regexp.MustCompile(`^\d{4}$`)
)

// rowInput mirrors the recognized columns. The col tag names the column.
type rowInput struct {
	MatricNumber          string `col:"matric_number" validate:"required,matric"`
	StudentName           string `col:"student_name" validate:"required,max=200"`
	StudentEmail          string `col:"student_email" validate:"omitempty,email"`
	IntakeYear            string `col:"intake_year" validate:"omitempty,year"`
	ProgramCode           string `col:"program_code" validate:"required,progcode"`
	ProgramName           string `col:"program_name" validate:"omitempty,max=200"`
	Faculty               string `col:"faculty" validate:"omitempty,max=200"`
	ResearchTitle         string `col:"research_title" validate:"omitempty,max=500"`
	SupervisorStaffNumber string `col:"supervisor_staff_number" validate:"required,staffno"`
	SupervisorName        string `col:"supervisor_name" validate:"required,max=200"`
	SupervisorEmail       string `col:"supervisor_email" validate:"omitempty,email"`
	SupervisorDepartment  string `col:"supervisor_department" validate:"omitempty,max=200"`
	Semester              string `col:"semester" validate:"required,semester"`
	AcademicYear          string `col:"academic_year" validate:"required,acadyear"`
	EvaluationType        string `col:"evaluation_type" validate:"omitempty,oneof=proposal_defense pre_viva viva progress"`
	Examiner1StaffNumber  string `col:"examiner1_staff_number" validate:"omitempty,staffno,nefield=SupervisorStaffNumber"`
	Examiner2StaffNumber  string `col:"examiner2_staff_number" validate:"omitempty,staffno,nefield=SupervisorStaffNumber,nefield=Examiner1StaffNumber"`
	ChairpersonStaffNo    string `col:"chairperson_staff_number" validate:"omitempty,staffno"`
	CoSupervisorStaffNo   string `col:"co_supervisor_staff_number" validate:"omitempty,staffno,nefield=SupervisorStaffNumber"`
	CoSupervisorName      string `col:"co_supervisor_name" validate:"omitempty,max=200"`
	CoSupervisorEmail     string `col:"co_supervisor_email" validate:"omitempty,email"`
	CoSupervisorInstitute string `col:"co_supervisor_institution" validate:"omitempty,max=200"`
}

// RequiredColumns must be present in the header row.
var RequiredColumns = []string{
	"matric_number",
	"student_name",
	"program_code",
	"supervisor_staff_number",
	"supervisor_name",
	"semester",
	"academic_year",
}

// Columns lists every recognized column in template order.
var Columns = func() []string {
	t := reflect.TypeOf(rowInput{})
	cols := make([]string, t.NumField())
	for i := range cols {
		cols[i] = t.Field(i).Tag.Get("col")
	}
	return cols
}()

// fieldColumns maps rowInput field names to column names.
var fieldColumns = func() map[string]string {
	t := reflect.TypeOf(rowInput{})
	m := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		m[f.Name] = f.Tag.Get("col")
	}
	return m
}()

// LecturerRef identifies a lecturer by staff number plus descriptive fields.
type LecturerRef struct {
	StaffNumber string
	Name        string
	Email       string
	Department  string
}

// CoSupervisorRef is internal when StaffNumber is set, external otherwise.
type CoSupervisorRef struct {
	StaffNumber string
	Name        string
	Email       string
	Institution string
}

// Present reports whether the row names a co-supervisor at all.
func (c CoSupervisorRef) Present() bool {
	return c.StaffNumber != "" || c.Name != ""
}

// Row is a validated, normalized record ready for resolution.
type Row struct {
	Number        int
	MatricNumber  string
	StudentName   string
	StudentEmail  string
	IntakeYear    *int
	ProgramCode   string
	ProgramName   string
	Faculty       string
	ResearchTitle string
	Supervisor    LecturerRef
	Semester      int
	AcademicYear  string
	// EvaluationType is empty when the column was blank.
	EvaluationType string
	Examiner1      string
	Examiner2      string
	Chairperson    string
	CoSupervisor   CoSupervisorRef
}

// RowValidator validates records against the import column rules.
type RowValidator struct {
	validate *validator.Validate
}

// NewRowValidator builds the validator and registers the custom rules.
func NewRowValidator() *RowValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("col"); name != "" {
			return name
		}
		return f.Name
	})

	mustRegister(v, "matric", matchPattern(matricPattern))
	mustRegister(v, "staffno", matchPattern(staffNoPattern))
	mustRegister(v, "progcode", matchPattern(progCodePattern))
	mustRegister(v, "acadyear", func(fl validator.FieldLevel) bool {
		return validAcademicYear(fl.Field().String())
	})
	mustRegister(v, "semester", func(fl validator.FieldLevel) bool {
		_, err := parseSemester(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "year", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !yearPattern.MatchString(s) {
			return false
		}
		y, _ := strconv.Atoi(s)
		return y >= 1900 && y <= 2100
	})

	return &RowValidator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate returns every problem with rec.
func (v *RowValidator) Validate(rec tabular.Record) ValidationResult {
	result := ValidationResult{Valid: true}

	missing := make(map[string]bool)
	for _, col := range RequiredColumns {
		if !rec.Has(col) {
			missing[col] = true
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   col,
				Message: "missing required column",
			})
		}
	}

	in := readInput(rec)
	err := v.validate.Struct(in)
	if err == nil {
		return result
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Message: err.Error()})
		return result
	}

	for _, fe := range fieldErrs {
		if missing[fe.Field()] {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Value:   fmt.Sprint(fe.Value()),
			Message: messageFor(fe),
		})
	}
	return result
}

// Parse validates rec and converts it to a Row.
// An invalid record yields a ValidationErrors error.
func (v *RowValidator) Parse(rec tabular.Record) (Row, error) {
	if err := v.Validate(rec).Err(); err != nil {
		return Row{}, err
	}
	return toRow(rec.Row, readInput(rec)), nil
}

func readInput(rec tabular.Record) *rowInput {
	in := &rowInput{}
	rv := reflect.ValueOf(in).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		rv.Field(i).SetString(rec.Get(rt.Field(i).Tag.Get("col")))
	}

	in.MatricNumber = strings.ToUpper(in.MatricNumber)
	in.ProgramCode = strings.ToUpper(in.ProgramCode)
	in.SupervisorStaffNumber = strings.ToUpper(in.SupervisorStaffNumber)
	in.Examiner1StaffNumber = strings.ToUpper(in.Examiner1StaffNumber)
	in.Examiner2StaffNumber = strings.ToUpper(in.Examiner2StaffNumber)
	in.ChairpersonStaffNo = strings.ToUpper(in.ChairpersonStaffNo)
	in.CoSupervisorStaffNo = strings.ToUpper(in.CoSupervisorStaffNo)
	in.StudentEmail = strings.ToLower(in.StudentEmail)
	in.SupervisorEmail = strings.ToLower(in.SupervisorEmail)
	in.CoSupervisorEmail = strings.ToLower(in.CoSupervisorEmail)
	in.AcademicYear = normalizeAcademicYear(in.AcademicYear)
	in.EvaluationType = normalizeEvaluationType(in.EvaluationType)
	return in
}

func toRow(number int, in *rowInput) Row {
	semester, _ := parseSemester(in.Semester)

	var intake *int
	if in.IntakeYear != "" {
		y, _ := strconv.Atoi(in.IntakeYear)
		intake = &y
	}

	return Row{
		Number:        number,
		MatricNumber:  in.MatricNumber,
		StudentName:   in.StudentName,
		StudentEmail:  in.StudentEmail,
		IntakeYear:    intake,
		ProgramCode:   in.ProgramCode,
		ProgramName:   in.ProgramName,
		Faculty:       in.Faculty,
		ResearchTitle: in.ResearchTitle,
		Supervisor: LecturerRef{
			StaffNumber: in.SupervisorStaffNumber,
			Name:        in.SupervisorName,
			Email:       in.SupervisorEmail,
			Department:  in.SupervisorDepartment,
		},
		Semester:       semester,
		AcademicYear:   in.AcademicYear,
		EvaluationType: in.EvaluationType,
		Examiner1:      in.Examiner1StaffNumber,
		Examiner2:      in.Examiner2StaffNumber,
		Chairperson:    in.ChairpersonStaffNo,
		CoSupervisor: CoSupervisorRef{
			StaffNumber: in.CoSupervisorStaffNo,
			Name:        in.CoSupervisorName,
			Email:       in.CoSupervisorEmail,
			Institution: in.CoSupervisorInstitute,
		},
	}
}

func parseSemester(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 3 {
		return 0, fmt.Errorf("semester %d out of range", n)
	}
	return n, nil
}

func normalizeAcademicYear(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "/")
}

func validAcademicYear(s string) bool {
	m := acadYearPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

func normalizeEvaluationType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field is empty"
	case "email":
		return "invalid email address"
	case "matric":
		return "invalid matric number format"
	case "staffno":
		return "invalid staff number format"
	case "progcode":
		return "invalid program code format"
	case "acadyear":
		return "invalid academic year (expected YYYY/YYYY with consecutive years)"
	case "semester":
		return "semester must be a whole number from 1 to 3"
	case "year":
		return "intake year must be a 4-digit year"
	case "oneof":
		return fmt.Sprintf("invalid enum value (allowed: %s)", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "nefield":
		return fmt.Sprintf("must differ from %s", fieldColumns[fe.Param()])
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fe.Error()
}
