package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/testfixtures"
)

func validEventInput(now time.Time) application.EventInput {
	return application.EventInput{
		Title:                "Go Workshop",
		Description:          "Hands-on introduction to concurrency.",
		Category:             "Workshop",
		Organizer:            "Programming Club",
		Venue:                "Lab 3",
		EventDate:            now.Add(10 * 24 * time.Hour),
		StartTime:            "14:00",
		EndTime:              "17:30",
		RegistrationDeadline: now.Add(5 * 24 * time.Hour),
		MaxParticipants:      25,
		Tags:                 []string{" go ", ""},
	}
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Parallel()

	env := newRegistrationEnv(t, testfixtures.NewMemoryHarness)
	creator := application.Principal{UserID: env.owner.ID, Role: application.RoleStudent}
	ctx := context.Background()

	t.Run("stores an open event", func(t *testing.T) {
		event, err := env.services.Events.CreateEvent(ctx, creator, validEventInput(env.clock.Now()))
		if err != nil {
			t.Fatalf("CreateEvent returned error: %v", err)
		}
		if event.CreatedBy != creator.UserID || !event.IsActive {
			t.Fatalf("unexpected ownership %+v", event.Event)
		}
		if event.Status != application.EventStatusOpen || event.AvailableSpots != 25 || !event.IsRegistrationOpen {
			t.Fatalf("unexpected derived fields %+v", event)
		}
		if len(event.Tags) != 1 || event.Tags[0] != "go" {
			t.Fatalf("expected tags to be compacted, got %q", event.Tags)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		input := validEventInput(env.clock.Now())
		input.Title = ""
		input.Category = "Party"
		input.StartTime = "25:00"
		input.MaxParticipants = 0
		input.RegistrationDeadline = input.EventDate.Add(time.Hour)

		_, err := env.services.Events.CreateEvent(ctx, creator, input)
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"title", "category", "startTime", "maxParticipants", "registrationDeadline"} {
			if vErr.FieldErrors[field] == "" {
				t.Errorf("expected %s to be reported, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects past event dates", func(t *testing.T) {
		input := validEventInput(env.clock.Now())
		input.EventDate = env.clock.After(-time.Hour)
		input.RegistrationDeadline = env.clock.After(-2 * time.Hour)

		_, err := env.services.Events.CreateEvent(ctx, creator, input)
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["eventDate"] == "" {
			t.Fatalf("expected eventDate validation error, got %v", err)
		}
	})
}

func TestEventService_OwnershipRules(t *testing.T) {
	t.Parallel()

	env := newRegistrationEnv(t, testfixtures.NewMemoryHarness)
	creator := application.Principal{UserID: env.owner.ID, Role: application.RoleStudent}
	admin := application.Principal{UserID: "admin", Role: application.RoleAdmin}
	ctx := context.Background()

	event, err := env.services.Events.CreateEvent(ctx, creator, validEventInput(env.clock.Now()))
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}

	stranger := env.student(t)
	if _, err := env.services.Events.UpdateEvent(ctx, stranger, event.ID, validEventInput(env.clock.Now())); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.services.Events.ToggleEventStatus(ctx, stranger, event.ID); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	toggled, err := env.services.Events.ToggleEventStatus(ctx, admin, event.ID)
	if err != nil {
		t.Fatalf("ToggleEventStatus returned error: %v", err)
	}
	if toggled.IsActive || toggled.Status != application.EventStatusCancelled {
		t.Fatalf("expected inactive event, got %+v", toggled)
	}
	if _, err := env.services.Registrations.Register(ctx, application.RegisterParams{Principal: stranger, EventID: event.ID}); !errors.Is(err, application.ErrEventInactive) {
		t.Fatalf("expected cached toggle to block signups, got %v", err)
	}
	if _, err := env.services.Events.ToggleEventStatus(ctx, creator, event.ID); err != nil {
		t.Fatalf("ToggleEventStatus returned error: %v", err)
	}

	update := validEventInput(env.clock.Now())
	update.Title = "Advanced Go Workshop"
	updated, err := env.services.Events.UpdateEvent(ctx, creator, event.ID, update)
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if updated.Title != "Advanced Go Workshop" || updated.CreatedBy != creator.UserID {
		t.Fatalf("unexpected update result %+v", updated.Event)
	}
}

func TestEventService_CapacityCannotDropBelowConfirmed(t *testing.T) {
	t.Parallel()

	env := newRegistrationEnv(t, testfixtures.NewMemoryHarness)
	creator := application.Principal{UserID: env.owner.ID, Role: application.RoleStudent}
	ctx := context.Background()

	event, err := env.services.Events.CreateEvent(ctx, creator, validEventInput(env.clock.Now()))
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	env.register(t, env.student(t), event.ID)
	env.register(t, env.student(t), event.ID)

	input := validEventInput(env.clock.Now())
	input.MaxParticipants = 1
	_, err = env.services.Events.UpdateEvent(ctx, creator, event.ID, input)
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["maxParticipants"] == "" {
		t.Fatalf("expected maxParticipants validation error, got %v", err)
	}
}

func TestEventService_DeleteEvent(t *testing.T) {
	t.Parallel()

	for name, newHarness := range harnesses {
		newHarness := newHarness
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			env := newRegistrationEnv(t, newHarness)
			creator := application.Principal{UserID: env.owner.ID, Role: application.RoleStudent}
			ctx := context.Background()

			busy, err := env.services.Events.CreateEvent(ctx, creator, validEventInput(env.clock.Now()))
			if err != nil {
				t.Fatalf("CreateEvent returned error: %v", err)
			}
			idle, err := env.services.Events.CreateEvent(ctx, creator, validEventInput(env.clock.Now()))
			if err != nil {
				t.Fatalf("CreateEvent returned error: %v", err)
			}
			env.register(t, env.student(t), busy.ID)

			if err := env.services.Events.DeleteEvent(ctx, creator, busy.ID); !errors.Is(err, application.ErrEventHasRegistrations) {
				t.Fatalf("expected ErrEventHasRegistrations, got %v", err)
			}
			if err := env.services.Events.DeleteEvent(ctx, creator, idle.ID); err != nil {
				t.Fatalf("DeleteEvent returned error: %v", err)
			}
			if _, err := env.services.Events.GetEvent(ctx, idle.ID); !errors.Is(err, application.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestEventService_ListEvents(t *testing.T) {
	t.Parallel()

	env := newRegistrationEnv(t, testfixtures.NewMemoryHarness)
	ref := testfixtures.ReferenceTime()
	other := env.h.SeedUser(t, testfixtures.NewUser())

	soon := env.h.SeedEvent(t, testfixtures.NewEvent(env.owner.ID, testfixtures.WithTitle("Chess Night"), testfixtures.WithCategory("Social"),
		testfixtures.WithSchedule(ref.Add(24*time.Hour), ref.Add(48*time.Hour))))
	later := env.h.SeedEvent(t, testfixtures.NewEvent(other.ID, testfixtures.WithTitle("Algorithms Seminar"), testfixtures.WithCategory("Seminar"),
		testfixtures.WithSchedule(ref.Add(5*24*time.Hour), ref.Add(6*24*time.Hour))))
	past := env.h.SeedEvent(t, testfixtures.NewEvent(env.owner.ID, testfixtures.WithTitle("Welcome Party"), testfixtures.WithCategory("Social"),
		testfixtures.WithSchedule(ref.Add(-48*time.Hour), ref.Add(-24*time.Hour))))
	env.h.SeedEvent(t, testfixtures.NewEvent(env.owner.ID, testfixtures.InactiveEvent()))
	ctx := context.Background()

	ids := func(list application.EventList) []string {
		out := make([]string, 0, len(list.Events))
		for _, e := range list.Events {
			out = append(out, e.ID)
		}
		return out
	}

	cases := []struct {
		name   string
		filter application.EventFilter
		want   []string
	}{
		{name: "active upcoming by date", want: []string{soon.ID, later.ID}},
		{name: "descending", filter: application.EventFilter{Order: "desc"}, want: []string{later.ID, soon.ID}},
		{name: "by title", filter: application.EventFilter{SortBy: "title"}, want: []string{later.ID, soon.ID}},
		{name: "past", filter: application.EventFilter{Status: "past"}, want: []string{past.ID}},
		{name: "category", filter: application.EventFilter{Category: "Social"}, want: []string{soon.ID}},
		{name: "search is case insensitive", filter: application.EventFilter{Search: "ALGORITHMS"}, want: []string{later.ID}},
		{name: "paged", filter: application.EventFilter{Page: application.Page{Number: 2, Limit: 1}}, want: []string{later.ID}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			list, err := env.services.Events.ListEvents(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListEvents returned error: %v", err)
			}
			got := ids(list)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}

	all, err := env.services.Events.ListEvents(ctx, application.EventFilter{Status: "all"})
	if err != nil || all.PageInfo.TotalItems != 4 {
		t.Fatalf("expected 4 events in total, got %+v, %v", all.PageInfo, err)
	}
	if _, err := env.services.Events.ListEvents(ctx, application.EventFilter{Status: "draft"}); err == nil {
		t.Fatal("expected invalid status filter to fail")
	}

	mine, err := env.services.Events.ListMyEvents(ctx, application.Principal{UserID: other.ID}, application.EventFilter{Status: "all"})
	if err != nil || len(mine.Events) != 1 || mine.Events[0].ID != later.ID {
		t.Fatalf("unexpected own events %+v, %v", mine, err)
	}

	completed, err := env.services.Events.GetEvent(ctx, past.ID)
	if err != nil || completed.Status != application.EventStatusCompleted || completed.IsRegistrationOpen {
		t.Fatalf("expected completed event, got %+v, %v", completed, err)
	}
}
