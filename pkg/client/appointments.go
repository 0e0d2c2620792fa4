package client

import (
	"context"
	"fmt"
	"net/url"

	"medilink/pkg/model"
)

// AppointmentsClient calls the availability and appointment endpoints of the
// appointments service.
type AppointmentsClient struct {
	httpClient *HttpClient
}

func NewAppointmentsClient(baseURL, token string) *AppointmentsClient {
	return &AppointmentsClient{
		httpClient: NewHttpClient(baseURL, token),
	}
}

func (c *AppointmentsClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *AppointmentsClient) GetSchedule(ctx context.Context, doctorID string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/availability/"+url.PathEscape(doctorID))
}

func (c *AppointmentsClient) GetDay(ctx context.Context, doctorID, day string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/availability/"+url.PathEscape(doctorID)+"/"+url.PathEscape(day))
}

func (c *AppointmentsClient) UpdateDay(ctx context.Context, doctorID, day string, update model.AvailabilityUpdate) (*Response, error) {
	return c.httpClient.PUT(ctx, "/api/v1/availability/"+url.PathEscape(doctorID)+"/"+url.PathEscape(day), update)
}

func (c *AppointmentsClient) ResetSchedule(ctx context.Context, doctorID string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/v1/availability/"+url.PathEscape(doctorID))
}

func (c *AppointmentsClient) AvailableSlots(ctx context.Context, doctorID, date string) (*Response, error) {
	q := url.Values{}
	q.Set("date", date)
	return c.httpClient.GET(ctx, "/api/v1/doctors/"+url.PathEscape(doctorID)+"/available-slots?"+q.Encode())
}

func (c *AppointmentsClient) Book(ctx context.Context, req model.BookingRequest) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/appointments", req)
}

func (c *AppointmentsClient) List(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/appointments?limit=%d&offset=%d", limit, offset))
}

func (c *AppointmentsClient) Get(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/appointments/"+url.PathEscape(id))
}

func (c *AppointmentsClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/cancel", struct{}{})
}

func (c *AppointmentsClient) UpdateStatus(ctx context.Context, id, status string) (*Response, error) {
	return c.httpClient.PATCH(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/status", model.StatusChange{Status: status})
}

func (c *AppointmentsClient) UpdateVideoCall(ctx context.Context, id, status string) (*Response, error) {
	return c.httpClient.PATCH(ctx, "/api/v1/appointments/"+url.PathEscape(id)+"/video", model.VideoCallChange{VideoCallStatus: status})
}

func (c *AppointmentsClient) DecodeAppointment(resp *Response) (*model.Appointment, error) {
	var appointment model.Appointment
	if err := resp.DecodeData(&appointment); err != nil {
		return nil, fmt.Errorf("could not decode appointment: %w", err)
	}
	return &appointment, nil
}

func (c *AppointmentsClient) DecodeDateAvailability(resp *Response) (*model.DateAvailability, error) {
	var availability model.DateAvailability
	if err := resp.DecodeData(&availability); err != nil {
		return nil, fmt.Errorf("could not decode availability: %w", err)
	}
	return &availability, nil
}
