package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkrstic/peerlink/internal/domain"
	"github.com/dkrstic/peerlink/internal/repository"
)

// In-memory repository fakes mirroring the postgres implementations,
// including the uniqueness rules the partial indexes enforce.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*domain.User{}}
}

func (r *memUserRepo) add(email, displayName, role string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &domain.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   time.Now(),
	}
	r.users[u.ID] = u
	return u
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memConnRepo struct {
	mu   sync.Mutex
	reqs map[uuid.UUID]*domain.ConnectionRequest
}

func newMemConnRepo() *memConnRepo {
	return &memConnRepo{reqs: map[uuid.UUID]*domain.ConnectionRequest{}}
}

func samePair(req *domain.ConnectionRequest, userA, userB uuid.UUID) bool {
	if req.TargetID == nil {
		return false
	}
	return (req.RequesterID == userA && *req.TargetID == userB) ||
		(req.RequesterID == userB && *req.TargetID == userA)
}

func (r *memConnRepo) activeLocked(userA, userB uuid.UUID) *domain.ConnectionRequest {
	for _, req := range r.reqs {
		if !samePair(req, userA, userB) {
			continue
		}
		if req.Status == domain.ConnectionPending || req.Status == domain.ConnectionConfirmed {
			return req
		}
	}
	return nil
}

func (r *memConnRepo) Create(_ context.Context, req *domain.ConnectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.TargetID != nil {
		if r.activeLocked(req.RequesterID, *req.TargetID) != nil {
			return repository.ErrDuplicate
		}
	}
	cp := *req
	r.reqs[req.ID] = &cp
	return nil
}

func (r *memConnRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *memConnRepo) GetByToken(_ context.Context, token string) (*domain.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.reqs {
		if req.InviteToken == token {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memConnRepo) GetActiveByPair(_ context.Context, userA, userB uuid.UUID) (*domain.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req := r.activeLocked(userA, userB); req != nil {
		cp := *req
		return &cp, nil
	}
	return nil, nil
}

func (r *memConnRepo) GetActiveByEmail(_ context.Context, requesterID uuid.UUID, email string) (*domain.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.reqs {
		if req.RequesterID != requesterID || req.TargetID != nil || req.TargetEmail == nil {
			continue
		}
		if strings.EqualFold(*req.TargetEmail, email) && req.Status == domain.ConnectionPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memConnRepo) ListByUser(_ context.Context, userID uuid.UUID, email string) ([]domain.ConnectionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConnectionRequest
	for _, req := range r.reqs {
		involved := req.Involves(userID)
		if !involved && req.TargetEmail != nil && strings.EqualFold(*req.TargetEmail, email) {
			involved = true
		}
		if involved {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memConnRepo) UpdateStatus(_ context.Context, id uuid.UUID, fromStatus, toStatus string, targetID *uuid.UUID, cancelledAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok || req.Status != fromStatus {
		return false, nil
	}
	if toStatus == domain.ConnectionConfirmed && targetID != nil {
		if existing := r.activeLocked(req.RequesterID, *targetID); existing != nil && existing.ID != id {
			return false, repository.ErrDuplicate
		}
	}
	req.Status = toStatus
	if targetID != nil {
		tid := *targetID
		req.TargetID = &tid
	}
	if cancelledAt != nil {
		at := *cancelledAt
		req.CancelledAt = &at
	}
	return true, nil
}

func (r *memConnRepo) ResetExpiry(_ context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok || req.Status != domain.ConnectionPending {
		return false, nil
	}
	req.ExpiresAt = expiresAt
	return true, nil
}

func (r *memConnRepo) SetScheduledAt(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.reqs[id]; ok {
		t := at
		req.ScheduledAt = &t
	}
	return nil
}

func (r *memConnRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.reqs {
		if req.Status == domain.ConnectionPending && now.After(req.ExpiresAt) {
			req.Status = domain.ConnectionExpired
			n++
		}
	}
	return n, nil
}

type memCareLinkRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.DoctorLinkToken
	links  []*domain.CareLink
}

func newMemCareLinkRepo() *memCareLinkRepo {
	return &memCareLinkRepo{tokens: map[string]*domain.DoctorLinkToken{}}
}

func (r *memCareLinkRepo) CreateLinkToken(_ context.Context, token *domain.DoctorLinkToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.Token] = &cp
	return nil
}

func (r *memCareLinkRepo) GetLinkToken(_ context.Context, token string) (*domain.DoctorLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lt, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	cp := *lt
	return &cp, nil
}

func (r *memCareLinkRepo) UpsertLink(_ context.Context, link *domain.CareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.DoctorID == link.DoctorID && l.PatientID == link.PatientID {
			return nil
		}
	}
	cp := *link
	r.links = append(r.links, &cp)
	return nil
}

func (r *memCareLinkRepo) GetLink(_ context.Context, doctorID, patientID uuid.UUID) (*domain.CareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.DoctorID == doctorID && l.PatientID == patientID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCareLinkRepo) ListPatients(_ context.Context, doctorID uuid.UUID) ([]domain.CareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CareLink
	for _, l := range r.links {
		if l.DoctorID == doctorID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memCareLinkRepo) ListDoctors(_ context.Context, patientID uuid.UUID) ([]domain.CareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CareLink
	for _, l := range r.links {
		if l.PatientID == patientID {
			out = append(out, *l)
		}
	}
	return out, nil
}

type memSurveyRepo struct {
	mu      sync.Mutex
	surveys map[uuid.UUID]*domain.SurveyRequest
}

func newMemSurveyRepo() *memSurveyRepo {
	return &memSurveyRepo{surveys: map[uuid.UUID]*domain.SurveyRequest{}}
}

func (r *memSurveyRepo) Create(_ context.Context, sr *domain.SurveyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.surveys {
		if s.PatientID == sr.PatientID && s.Occasion == sr.Occasion && s.Status != domain.SurveyCompleted {
			return repository.ErrDuplicate
		}
	}
	cp := *sr
	r.surveys[sr.ID] = &cp
	return nil
}

func (r *memSurveyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SurveyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *sr
	return &cp, nil
}

func (r *memSurveyRepo) GetActive(_ context.Context, patientID uuid.UUID, occasion string) (*domain.SurveyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sr := range r.surveys {
		if sr.PatientID == patientID && sr.Occasion == occasion && sr.Status != domain.SurveyCompleted {
			cp := *sr
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSurveyRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sr, ok := r.surveys[id]; ok && sr.Status != domain.SurveyCompleted {
		t := sentAt
		sr.SentAt = &t
		sr.Status = domain.SurveySent
	}
	return nil
}

func (r *memSurveyRepo) Complete(_ context.Context, id uuid.UUID, completedAt time.Time, responseData map[string]string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.surveys[id]
	if !ok || sr.Status == domain.SurveyCompleted {
		return false, nil
	}
	t := completedAt
	sr.CompletedAt = &t
	sr.Status = domain.SurveyCompleted
	sr.ResponseData = responseData
	return true, nil
}

func (r *memSurveyRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]domain.SurveyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SurveyRequest
	for _, sr := range r.surveys {
		if sr.DoctorID == doctorID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

func (r *memSurveyRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]domain.SurveyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SurveyRequest
	for _, sr := range r.surveys {
		if sr.PatientID == patientID {
			out = append(out, *sr)
		}
	}
	return out, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.CallSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[uuid.UUID]*domain.CallSession{}}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) CreateIfIdle(_ context.Context, s *domain.CallSession) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Active() && (existing.Involves(s.PartyAID) || existing.Involves(s.PartyBID)) {
			return false, nil
		}
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return true, nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) GetActiveByUser(_ context.Context, userID uuid.UUID) (*domain.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Active() && s.Involves(userID) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CallSession
	for _, s := range r.sessions {
		if s.Involves(userID) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) UpdateStatus(_ context.Context, id uuid.UUID, fromStatus, toStatus string, startedAt, endedAt *time.Time, endReason *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != fromStatus {
		return false, nil
	}
	s.Status = toStatus
	if startedAt != nil {
		t := *startedAt
		s.StartedAt = &t
	}
	if endedAt != nil {
		t := *endedAt
		s.EndedAt = &t
	}
	if endReason != nil {
		reason := *endReason
		s.EndReason = &reason
	}
	return true, nil
}

func (r *memSessionRepo) SetConferencingRef(_ context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		v := ref
		s.ConferencingRef = &v
	}
	return nil
}

func (r *memSessionRepo) AttachArtifacts(_ context.Context, id uuid.UUID, transcript, summary *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	if transcript != nil {
		v := *transcript
		s.Transcript = &v
	}
	if summary != nil {
		v := *summary
		s.Summary = &v
	}
	return nil
}

func (r *memSessionRepo) ListStaleConnecting(_ context.Context, cutoff time.Time) ([]domain.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CallSession
	for _, s := range r.sessions {
		if s.Status == domain.SessionConnecting && s.CreatedAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListUpcoming(_ context.Context, from, to time.Time) ([]domain.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CallSession
	for _, s := range r.sessions {
		if s.Status != domain.SessionScheduled || s.ScheduledAt == nil {
			continue
		}
		if s.ScheduledAt.After(from) && s.ScheduledAt.Before(to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Boundary fakes.

type fakeDispatcher struct {
	mu        sync.Mutex
	reject    bool
	invites   []string
	surveys   []string
	reminders []string
}

func (d *fakeDispatcher) SendConnectionInvite(to, _, _ string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.invites = append(d.invites, to)
	return true
}

func (d *fakeDispatcher) SendSurveyLink(to, _, _, _ string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.surveys = append(d.surveys, to)
	return true
}

func (d *fakeDispatcher) SendSessionReminder(to, _, _, _ string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.reminders = append(d.reminders, to)
	return true
}

func (d *fakeDispatcher) inviteCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.invites)
}

func (d *fakeDispatcher) surveyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surveys)
}

type fakeNotifier struct {
	mu        sync.Mutex
	invites   int
	accepts   int
	assigned  int
	incoming  int
	connected int
	ended     int
}

func (n *fakeNotifier) NotifyConnectionInvite(uuid.UUID, *domain.ConnectionRequest) {
	n.mu.Lock()
	n.invites++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyConnectionAccepted(uuid.UUID, *domain.ConnectionRequest) {
	n.mu.Lock()
	n.accepts++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifySurveyAssigned(uuid.UUID, *domain.SurveyRequest) {
	n.mu.Lock()
	n.assigned++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyCallIncoming(uuid.UUID, *domain.CallSession) {
	n.mu.Lock()
	n.incoming++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyCallConnected(*domain.CallSession) {
	n.mu.Lock()
	n.connected++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyCallEnded(*domain.CallSession) {
	n.mu.Lock()
	n.ended++
	n.mu.Unlock()
}

func (n *fakeNotifier) endedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ended
}

type fakeMeetings struct {
	ref  string
	fail bool
}

func (m *fakeMeetings) CreateMeeting(context.Context, string, time.Time, int, []string) (string, error) {
	if m.fail {
		return "", context.DeadlineExceeded
	}
	return m.ref, nil
}

type fakeDialer struct {
	mu     sync.Mutex
	fail   bool
	dialed []uuid.UUID
}

func (d *fakeDialer) Dial(_ context.Context, sessionID, _, _ uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return "", context.DeadlineExceeded
	}
	d.dialed = append(d.dialed, sessionID)
	return "handle-" + sessionID.String()[:8], nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

type fakeCallState struct {
	mu     sync.Mutex
	active map[uuid.UUID]uuid.UUID
}

func newFakeCallState() *fakeCallState {
	return &fakeCallState{active: map[uuid.UUID]uuid.UUID{}}
}

func (c *fakeCallState) MarkActive(_ context.Context, sessionID, partyA, partyB uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[partyA] = sessionID
	c.active[partyB] = sessionID
	return nil
}

func (c *fakeCallState) Clear(_ context.Context, partyA, partyB uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, partyA)
	delete(c.active, partyB)
	return nil
}

func (c *fakeCallState) has(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[userID]
	return ok
}
