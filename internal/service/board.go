package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"fieldbox/internal/model"
	"fieldbox/internal/store"

	"go.uber.org/zap"
)

// errBoardNoop marks a drop the board silently ignores: the request is
// already terminal, or already sits in the target cell.
var errBoardNoop = errors.New("board noop")

const dateLayout = "2006-01-02"

// BoardService maintains the unassigned queue and the weekly
// technician/date grid. Assign and Unassign are the only two mutators of
// the (technician, date) pair.
type BoardService struct {
	store     *store.Store
	bus       EventBus
	jobClient JobClient
	log       *zap.Logger
}

func NewBoardService(st *store.Store, bus EventBus, log *zap.Logger) *BoardService {
	return &BoardService{store: st, bus: bus, log: log}
}

// SetJobClient sets the client for scheduling background notifications.
func (s *BoardService) SetJobClient(client JobClient) {
	s.jobClient = client
}

// Assign binds a request to a (technician, date) cell. Re-assigning
// overwrites the previous pair: the pair is a single slot, so a request can
// never occupy two cells. A NEW request becomes IN_PROGRESS. Dropping a
// terminal request, or dropping onto the cell the request already occupies,
// is a silent no-op.
func (s *BoardService) Assign(ctx context.Context, requestID, technicianID, date string) (*model.Request, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, newValidationError("date", "must be a calendar date in YYYY-MM-DD form")
	}
	if _, ok := s.store.GetTechnician(technicianID); !ok {
		return nil, newNotFoundError("technician", technicianID)
	}

	req, err := s.store.UpdateRequest(ctx, requestID, func(r *model.Request) error {
		if r.Status.Terminal() {
			return errBoardNoop
		}
		if r.Assigned() && *r.AssignedTechnicianID == technicianID && *r.ScheduledDate == date {
			return errBoardNoop
		}
		tech, day := technicianID, date
		r.AssignedTechnicianID = &tech
		r.ScheduledDate = &day
		if r.Status == model.StatusNew {
			r.Status = model.StatusInProgress
		}
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("request", requestID)
	}
	if errors.Is(err, errBoardNoop) {
		s.log.Debug("ignored assign on settled request", zap.String("request_id", requestID))
		r, _ := s.store.GetRequest(requestID)
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	_ = s.bus.PublishRequest(requestID, map[string]interface{}{
		"type":         "request.assigned",
		"requestId":    requestID,
		"technicianId": technicianID,
		"date":         date,
	})
	_ = s.bus.PublishTechnician(technicianID, map[string]interface{}{
		"type":      "assignment.added",
		"requestId": requestID,
		"date":      date,
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": requestID})

	if s.jobClient != nil {
		if err := s.jobClient.ScheduleAssignmentNotice(requestID, technicianID); err != nil {
			s.log.Warn("failed to schedule assignment notice", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	return req, nil
}

// Unassign clears the (technician, date) pair and resets the request to
// NEW. It is the explicit inverse of Assign and is not reachable once the
// request is terminal: that drop is silently ignored.
func (s *BoardService) Unassign(ctx context.Context, requestID string) (*model.Request, error) {
	var prevTech string
	req, err := s.store.UpdateRequest(ctx, requestID, func(r *model.Request) error {
		if r.Status.Terminal() {
			return errBoardNoop
		}
		if !r.Assigned() {
			return errBoardNoop
		}
		prevTech = *r.AssignedTechnicianID
		r.AssignedTechnicianID = nil
		r.ScheduledDate = nil
		r.Status = model.StatusNew
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("request", requestID)
	}
	if errors.Is(err, errBoardNoop) {
		s.log.Debug("ignored unassign on settled request", zap.String("request_id", requestID))
		r, _ := s.store.GetRequest(requestID)
		return r, nil
	}
	if err != nil {
		return nil, err
	}

	_ = s.bus.PublishRequest(requestID, map[string]interface{}{
		"type":      "request.unassigned",
		"requestId": requestID,
	})
	_ = s.bus.PublishTechnician(prevTech, map[string]interface{}{
		"type":      "assignment.removed",
		"requestId": requestID,
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": requestID})
	return req, nil
}

// Queue returns the unassigned queue: open requests with no board cell,
// oldest first.
func (s *BoardService) Queue(ctx context.Context) []*model.Request {
	out := make([]*model.Request, 0)
	for _, r := range s.store.ListRequests() {
		if r.Assigned() {
			continue
		}
		if r.Status != model.StatusNew && r.Status != model.StatusInProgress {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GridRow is one technician's week. Days is keyed by YYYY-MM-DD date.
type GridRow struct {
	Technician *model.Technician           `json:"technician"`
	Days       map[string][]*model.Request `json:"days"`
}

// Grid is the weekly board view. Rows cover technicians that are currently
// available plus unavailable ones that still hold assignments in the window;
// DropTargets lists only the available technician IDs, so availability is a
// read-time filter on new drops, never a stored invariant.
type Grid struct {
	Days        []string  `json:"days"`
	Rows        []GridRow `json:"rows"`
	DropTargets []string  `json:"dropTargets"`
}

// WeekWindow computes the 7-day window anchored on ref: the Monday of
// ref's week through the following Sunday. Pure; never mutates state.
func WeekWindow(ref time.Time) []string {
	offset := (int(ref.Weekday()) + 6) % 7
	monday := ref.AddDate(0, 0, -offset)
	days := make([]string, 7)
	for i := 0; i < 7; i++ {
		days[i] = monday.AddDate(0, 0, i).Format(dateLayout)
	}
	return days
}

// Grid builds the weekly grid for the week containing anchor. Technician
// availability is read live from the roster on every call.
func (s *BoardService) Grid(ctx context.Context, anchor time.Time) *Grid {
	days := WeekWindow(anchor)
	inWindow := make(map[string]bool, len(days))
	for _, d := range days {
		inWindow[d] = true
	}

	assignments := make(map[string]map[string][]*model.Request)
	for _, r := range s.store.ListRequests() {
		if !r.Assigned() || !inWindow[*r.ScheduledDate] {
			continue
		}
		tech := *r.AssignedTechnicianID
		if assignments[tech] == nil {
			assignments[tech] = make(map[string][]*model.Request)
		}
		assignments[tech][*r.ScheduledDate] = append(assignments[tech][*r.ScheduledDate], r)
	}

	grid := &Grid{Days: days}
	techs := s.store.ListTechnicians()
	sort.Slice(techs, func(i, j int) bool { return techs[i].Name < techs[j].Name })
	for _, t := range techs {
		if t.IsAvailable {
			grid.DropTargets = append(grid.DropTargets, t.ID)
		} else if len(assignments[t.ID]) == 0 {
			// Unavailable and nothing scheduled this week: no row.
			continue
		}
		row := GridRow{Technician: t, Days: make(map[string][]*model.Request, len(days))}
		for _, d := range days {
			row.Days[d] = assignments[t.ID][d]
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}
