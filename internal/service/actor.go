package service

import "fmt"

type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleRegistrar Role = "registrar"
	RoleAdmin     Role = "admin"
)

// Valid известна ли роль
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleRegistrar, RoleAdmin:
		return true
	}
	return false
}

// Actor кто выполняет операцию. Заполняется из токена сессии
type Actor struct {
	Role     Role
	DoctorID int64  // для врача
	Phone    string // для пациента
	Subject  string // логин или идентификатор из токена
}

// IsStaff сотрудник клиники
func (a Actor) IsStaff() bool {
	return a.Role == RoleDoctor || a.Role == RoleRegistrar || a.Role == RoleAdmin
}

// CanManageDoctor администратор или сам врач
func (a Actor) CanManageDoctor(doctorID int64) bool {
	return a.Role == RoleAdmin || (a.Role == RoleDoctor && a.DoctorID == doctorID)
}

// CanViewDoctor регистратура видит всех врачей, врач только себя
func (a Actor) CanViewDoctor(doctorID int64) bool {
	return a.Role == RoleRegistrar || a.CanManageDoctor(doctorID)
}

// Name подпись для журнала действий
func (a Actor) Name() string {
	if a.Subject != "" {
		return a.Subject
	}
	if a.Role == RoleDoctor {
		return fmt.Sprintf("doctor:%d", a.DoctorID)
	}
	return string(a.Role)
}
