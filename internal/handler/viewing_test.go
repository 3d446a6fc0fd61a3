package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/model"
	"github.com/iliyamo/viewing-scheduler/internal/store"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) Purge(context.Context) error {
	p.calls++
	return p.err
}

func newTestHandler(t *testing.T) (*ViewingHandler, *store.Store, *countingPurger) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	n := 0
	s, err := store.New(store.Options{
		Timezone: "America/New_York",
		Clock:    store.FixedClock(time.Date(2024, 3, 4, 8, 0, 0, 0, loc)),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	require.NoError(t, err)
	purger := &countingPurger{}
	return NewViewingHandler(s, purger, zap.NewNop()), s, purger
}

func do(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	require.NoError(t, h(c))
	return rec
}

func TestListSlots(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := do(t, h.ListSlots, http.MethodGet, "/v1/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Timezone string           `json:"timezone"`
		Slots    []model.TimeSlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "America/New_York", body.Timezone)
	assert.Len(t, body.Slots, 7*18)
	assert.Equal(t, "id-1", body.Slots[0].ID)
}

func TestListSlotsGrouped(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := do(t, h.ListSlots, http.MethodGet, "/v1/slots?grouped=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Days []struct {
			Date    string           `json:"date"`
			Weekday string           `json:"weekday"`
			Slots   []model.TimeSlot `json:"slots"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Days, 7)
	assert.Equal(t, "2024-03-04", body.Days[0].Date)
	assert.Equal(t, "Monday", body.Days[0].Weekday)
	assert.Len(t, body.Days[0].Slots, 18)
}

func TestBookAndCancelViewing(t *testing.T) {
	h, s, purger := newTestHandler(t)

	rec := do(t, h.BookViewing, http.MethodPost, "/v1/viewings",
		`{"start_time":"2024-03-04T09:00:00-05:00","viewer_name":"Jane Doe","property":"123 Main St"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Jane Doe", res.ViewerName)
	assert.Len(t, s.ListAvailableSlots(), 7*18-1)
	assert.Equal(t, 1, purger.calls)

	rec = do(t, h.ListViewings, http.MethodGet, "/v1/viewings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.ID)

	rec = do(t, h.CancelViewing, http.MethodDelete, "/v1/viewings/"+res.ID, "", "id", res.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, res.ID, cancelled.ID)
	assert.Equal(t, res.ViewerName, cancelled.ViewerName)
	assert.Len(t, s.ListAvailableSlots(), 7*18)
	assert.Empty(t, s.ListReservations())
	assert.Equal(t, 2, purger.calls)
}

func TestBookViewingErrors(t *testing.T) {
	h, _, purger := newTestHandler(t)
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"start_time":`, http.StatusBadRequest},
		{"missing start", `{"viewer_name":"A","property":"B"}`, http.StatusBadRequest},
		{"bad start format", `{"start_time":"monday 9am","viewer_name":"A","property":"B"}`, http.StatusBadRequest},
		{"blank viewer", `{"start_time":"2024-03-04T09:00:00-05:00","viewer_name":"  ","property":"B"}`, http.StatusBadRequest},
		{"no such slot", `{"start_time":"2024-03-04T09:15:00-05:00","viewer_name":"A","property":"B"}`, http.StatusConflict},
		{"weekend", `{"start_time":"2024-03-09T10:00:00-05:00","viewer_name":"A","property":"B"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h.BookViewing, http.MethodPost, "/v1/viewings", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, purger.calls)
}

func TestBookViewingTwiceConflicts(t *testing.T) {
	h, s, _ := newTestHandler(t)
	body := `{"start_time":"2024-03-04T14:00:00Z","viewer_name":"A","property":"B"}`

	rec := do(t, h.BookViewing, http.MethodPost, "/v1/viewings", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h.BookViewing, http.MethodPost, "/v1/viewings", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, s.ListReservations(), 1)
}

func TestCancelUnknownViewing(t *testing.T) {
	h, _, purger := newTestHandler(t)
	rec := do(t, h.CancelViewing, http.MethodDelete, "/v1/viewings/nope", "", "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, purger.calls)
}

func TestPurgeFailureDoesNotFailBooking(t *testing.T) {
	h, _, purger := newTestHandler(t)
	purger.err = errors.New("redis down")
	rec := do(t, h.BookViewing, http.MethodPost, "/v1/viewings",
		`{"start_time":"2024-03-04T14:00:00Z","viewer_name":"A","property":"B"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSchedule(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := do(t, h.Schedule, http.MethodGet, "/v1/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "America/New_York", body.Timezone)
	assert.Equal(t, 9, body.OpenHour)
	assert.Equal(t, 18, body.CloseHour)
	assert.Equal(t, 30, body.SlotMinutes)
	assert.Equal(t, 18, body.SlotsPerDay)
	assert.Equal(t, 126, body.Stats.Available)
}

func TestHealth(t *testing.T) {
	rec := do(t, Health, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
