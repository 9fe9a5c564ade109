package model

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusBreak     SlotStatus = "break"
)

// Slot описание слота на дату, вычисляется и не хранится
type Slot struct {
	Time   Clock      `json:"time"`
	Status SlotStatus `json:"status"`
}

// Available удобный флаг для клиентов
func (s Slot) Available() bool {
	return s.Status == SlotStatusAvailable
}
