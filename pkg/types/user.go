package types

// UserRole represents the different user roles in the system
type UserRole string

const (
	RoleDoctor  UserRole = "DOCTOR"
	RolePatient UserRole = "PATIENT"
)

// Valid reports whether the role is one of the known roles
func (r UserRole) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Gender represents a user's gender as displayed in the UI
type Gender string

const (
	GenderMale   Gender = "男"
	GenderFemale Gender = "女"
)

// UserProfile represents a registered user (patient or doctor)
type UserProfile struct {
	ID               string   `json:"id" db:"id"`
	Role             UserRole `json:"role" db:"role"`
	Name             string   `json:"name" db:"name"`
	Gender           Gender   `json:"gender,omitempty" db:"gender"`
	Age              int      `json:"age,omitempty" db:"age"`
	Phone            string   `json:"phone,omitempty" db:"phone"`
	Department       string   `json:"department,omitempty" db:"department"`
	Title            string   `json:"title,omitempty" db:"title"`
	Hospital         string   `json:"hospital,omitempty" db:"hospital"`
	Specialties      string   `json:"specialties,omitempty" db:"specialties"`
	RegistrationDate string   `json:"registrationDate" db:"registration_date"`
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	ID          string   `json:"id"`
	Password    string   `json:"password"`
	Role        UserRole `json:"role"`
	Name        string   `json:"name"`
	Gender      Gender   `json:"gender,omitempty"`
	Age         int      `json:"age"`
	Phone       string   `json:"phone"`
	Department  string   `json:"department,omitempty"`
	Title       string   `json:"title,omitempty"`
	Hospital    string   `json:"hospital,omitempty"`
	Specialties string   `json:"specialties,omitempty"`
}

// LoginRequest represents user login credentials
type LoginRequest struct {
	ID       string   `json:"id"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

// TokenResponse represents a successful login response
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *UserProfile `json:"user"`
}
