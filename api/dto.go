package api

import (
	"booking-service/internal/interval"
	"booking-service/internal/models"
)

type BookingRequest struct {
	ID      string `json:"id,omitempty"`
	Date    string `json:"date"`
	Room    string `json:"room"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Teacher string `json:"teacher"`
	Type    string `json:"type"`
	Note    string `json:"note,omitempty"`
}

func (r BookingRequest) Booking() models.Booking {
	return models.Booking{
		ID:      r.ID,
		Date:    r.Date,
		Room:    r.Room,
		Start:   r.Start,
		End:     r.End,
		Teacher: r.Teacher,
		Type:    r.Type,
		Note:    r.Note,
	}
}

type RescheduleRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type BookingResponse struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Room      string `json:"room"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Teacher   string `json:"teacher"`
	Type      string `json:"type"`
	Note      string `json:"note,omitempty"`
}

func NewBookingResponse(b models.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		Date:      b.Date,
		Room:      b.Room,
		Start:     b.Start,
		End:       b.End,
		StartTime: interval.FormatMinutes(b.Start),
		EndTime:   interval.FormatMinutes(b.End),
		Teacher:   b.Teacher,
		Type:      b.Type,
		Note:      b.Note,
	}
}

func NewBookingResponses(bookings []models.Booking) []BookingResponse {
	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = NewBookingResponse(b)
	}
	return out
}

func (r BookingResponse) Booking() models.Booking {
	return models.Booking{
		ID:      r.ID,
		Date:    r.Date,
		Room:    r.Room,
		Start:   r.Start,
		End:     r.End,
		Teacher: r.Teacher,
		Type:    r.Type,
		Note:    r.Note,
	}
}

type Gap struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AvailabilityResponse struct {
	Date string `json:"date"`
	Room string `json:"room"`
	Free []Gap  `json:"free"`
}

func NewAvailabilityResponse(date, room string, gaps []interval.Span) AvailabilityResponse {
	free := make([]Gap, len(gaps))
	for i, g := range gaps {
		free[i] = Gap{
			Start:     g.Start,
			End:       g.End,
			StartTime: interval.FormatMinutes(g.Start),
			EndTime:   interval.FormatMinutes(g.End),
		}
	}
	return AvailabilityResponse{Date: date, Room: room, Free: free}
}
