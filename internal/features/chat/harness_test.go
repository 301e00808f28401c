package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/vendorchat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"go.uber.org/zap"
)

func testDefaults() config.ChatDefaults {
	return config.ChatDefaults{
		MaxUsersAllowed:     250,
		MemberBatchSize:     20,
		BranchAdminJobLevel: 5,
		GroupCacheTTLSecs:   300,
		LastReadTTLDays:     60,
	}
}

func testConfig() *config.Config {
	return &config.Config{Chat: testDefaults()}
}

// --- fake vendor provider --------------------------------------------------

// fakeProvider is an in-memory thread store with a call log, so tests can
// assert ordering and count of vendor operations.
type fakeProvider struct {
	threads map[string]map[string]vendorchat.Participant
	calls   []string
	seq     int

	// forgetAdds makes AddParticipants succeed without persisting, so a
	// subsequent ListParticipants does not show the new members.
	forgetAdds bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{threads: map[string]map[string]vendorchat.Participant{}}
}

func (p *fakeProvider) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakeProvider) CreateThread(ctx context.Context, topic string, participants []vendorchat.Participant) (string, error) {
	p.seq++
	threadID := fmt.Sprintf("thread-%d", p.seq)
	members := make(map[string]vendorchat.Participant, len(participants))
	for _, u := range participants {
		members[u.VendorUserID] = u
	}
	p.threads[threadID] = members
	p.record("CreateThread(%s)", topic)
	return threadID, nil
}

func (p *fakeProvider) ListParticipants(ctx context.Context, threadID string) ([]vendorchat.Participant, error) {
	p.record("ListParticipants(%s)", threadID)
	members, ok := p.threads[threadID]
	if !ok {
		return nil, apperrors.ErrThreadNotFound
	}
	out := make([]vendorchat.Participant, 0, len(members))
	for _, u := range members {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorUserID < out[j].VendorUserID })
	return out, nil
}

func (p *fakeProvider) AddParticipants(ctx context.Context, threadID string, users []vendorchat.Participant) ([]vendorchat.Participant, error) {
	p.record("AddParticipants(%s,%d)", threadID, len(users))
	members, ok := p.threads[threadID]
	if !ok {
		return nil, apperrors.ErrThreadNotFound
	}
	if !p.forgetAdds {
		for _, u := range users {
			members[u.VendorUserID] = u
		}
	}
	return users, nil
}

func (p *fakeProvider) RemoveParticipants(ctx context.Context, threadID string, vendorUserIDs []string) ([]string, error) {
	p.record("RemoveParticipants(%s,%d)", threadID, len(vendorUserIDs))
	members, ok := p.threads[threadID]
	if !ok {
		return nil, apperrors.ErrThreadNotFound
	}
	for _, id := range vendorUserIDs {
		delete(members, id)
	}
	return vendorUserIDs, nil
}

func (p *fakeProvider) DeleteThread(ctx context.Context, threadID string) error {
	p.record("DeleteThread(%s)", threadID)
	if _, ok := p.threads[threadID]; !ok {
		return apperrors.ErrThreadNotFound
	}
	delete(p.threads, threadID)
	return nil
}

func (p *fakeProvider) CreateIdentity(ctx context.Context, displayName string) (string, error) {
	p.seq++
	p.record("CreateIdentity(%s)", displayName)
	return fmt.Sprintf("vendor-%d", p.seq), nil
}

func (p *fakeProvider) DeleteIdentity(ctx context.Context, vendorUserID string) error {
	p.record("DeleteIdentity(%s)", vendorUserID)
	return nil
}

func (p *fakeProvider) resetCalls() { p.calls = nil }

func (p *fakeProvider) vendorCallCount() int { return len(p.calls) }

// --- fake directory --------------------------------------------------------

type fakeDirectory struct {
	users       map[string]directory.UserRecord
	categories  map[string][]string
	branchNames map[string]string
}

func newFakeDirectory(users ...directory.UserRecord) *fakeDirectory {
	d := &fakeDirectory{
		users:       map[string]directory.UserRecord{},
		categories:  map[string][]string{},
		branchNames: map[string]string{},
	}
	for _, u := range users {
		d.users[u.EmployeeID] = u
	}
	return d
}

func (d *fakeDirectory) GetByID(ctx context.Context, employeeID string) (*directory.UserRecord, error) {
	u, ok := d.users[employeeID]
	if !ok {
		return nil, fmt.Errorf("employee %s not found", employeeID)
	}
	return &u, nil
}

func (d *fakeDirectory) GetByIDs(ctx context.Context, employeeIDs []string, opts *directory.Options) ([]directory.UserRecord, error) {
	var out []directory.UserRecord
	for _, id := range employeeIDs {
		u, ok := d.users[id]
		if !ok {
			continue
		}
		if opts != nil && opts.ActiveOnly && !u.Active {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *fakeDirectory) GetByBranch(ctx context.Context, branchIDs []string, jobLevels []int, opts *directory.Options) ([]directory.UserRecord, error) {
	branchSet := map[string]bool{}
	for _, b := range branchIDs {
		branchSet[b] = true
	}
	levelSet := map[int]bool{}
	for _, l := range jobLevels {
		levelSet[l] = true
	}

	var out []directory.UserRecord
	for _, u := range d.users {
		inBranch := false
		for _, b := range u.BranchIDs {
			if branchSet[b] {
				inBranch = true
				break
			}
		}
		if !inBranch {
			continue
		}
		if len(jobLevels) > 0 && !levelSet[u.Job.Level] {
			continue
		}
		if opts != nil && opts.ActiveOnly && !u.Active {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *fakeDirectory) ResolveJobCategories(ctx context.Context, categories []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, c := range categories {
		if jobs, ok := d.categories[c]; ok {
			out[c] = jobs
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListBranches(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, u := range d.users {
		for _, b := range u.BranchIDs {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDirectory) BranchName(ctx context.Context, branchID string) (string, error) {
	if name, ok := d.branchNames[branchID]; ok {
		return name, nil
	}
	return branchID, nil
}

func (d *fakeDirectory) BindVendorIdentity(ctx context.Context, employeeID, vendorUserID string) error {
	u, ok := d.users[employeeID]
	if !ok {
		return fmt.Errorf("employee %s not found", employeeID)
	}
	u.VendorUserID = vendorUserID
	d.users[employeeID] = u
	return nil
}

func (d *fakeDirectory) UnbindVendorIdentity(ctx context.Context, employeeID string) error {
	u, ok := d.users[employeeID]
	if !ok {
		return fmt.Errorf("employee %s not found", employeeID)
	}
	u.VendorUserID = ""
	d.users[employeeID] = u
	return nil
}

func admin(id, branch string, createdAt time.Time) directory.UserRecord {
	return directory.UserRecord{
		EmployeeID:   id,
		DisplayName:  "Admin " + id,
		Job:          directory.JobRole{ID: "job-admin", Level: 7},
		BranchIDs:    []string{branch},
		VendorUserID: "v-" + id,
		Active:       true,
		CreatedAt:    createdAt,
	}
}

func fieldStaff(id, branch string) directory.UserRecord {
	return directory.UserRecord{
		EmployeeID:   id,
		DisplayName:  "Staff " + id,
		Job:          directory.JobRole{ID: "job-staff", Level: 2},
		BranchIDs:    []string{branch},
		VendorUserID: "v-" + id,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

// --- fake store -------------------------------------------------------------

type fakeStore struct {
	groups         map[string]*Group
	members        []Membership
	seq            int
	writes         int
	createGroupErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{groups: map[string]*Group{}}
}

func (s *fakeStore) EnsureIndexes(ctx context.Context) error { return nil }

func (s *fakeStore) CreateGroup(ctx context.Context, group *Group) error {
	if s.createGroupErr != nil {
		return s.createGroupErr
	}
	if _, exists := s.groups[group.GroupID]; exists {
		return fmt.Errorf("duplicate group id %s", group.GroupID)
	}
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now
	if group.Status == "" {
		group.Status = GroupStatusActive
	}
	copied := *group
	s.groups[group.GroupID] = &copied
	s.writes++
	return nil
}

func (s *fakeStore) FindGroupByID(ctx context.Context, groupID, branchID string) (*Group, error) {
	g, ok := s.groups[groupID]
	if !ok || (branchID != "" && g.BranchID != branchID) {
		return nil, apperrors.ErrGroupNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *fakeStore) FindGroups(ctx context.Context, filter GroupFilter, page PageOptions) ([]Group, error) {
	var out []Group
	for _, g := range s.groups {
		if filter.BranchID != "" && g.BranchID != filter.BranchID {
			continue
		}
		if filter.Type != "" && g.Type != filter.Type {
			continue
		}
		if filter.Category != "" && g.Category != filter.Category {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		if filter.IntendedForUserID != "" && g.IntendedForUserID != filter.IntendedForUserID {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if page.SortOrder == -1 {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (s *fakeStore) FindGroupsByBranches(ctx context.Context, branchIDs []string, types []GroupType, activeOnly bool, page PageOptions) ([]Group, error) {
	branchSet := map[string]bool{}
	for _, b := range branchIDs {
		branchSet[b] = true
	}
	var out []Group
	for _, g := range s.groups {
		if !branchSet[g.BranchID] {
			continue
		}
		if activeOnly && g.Status != GroupStatusActive {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) UpsertGroup(ctx context.Context, patch *GroupPatch) (*Group, error) {
	g, ok := s.groups[patch.GroupID]
	if !ok {
		return nil, apperrors.ErrGroupNotFound
	}
	if patch.Name != nil {
		g.Name = *patch.Name
	}
	if patch.Status != nil {
		g.Status = *patch.Status
	}
	if patch.Image != nil {
		g.Image = patch.Image
	}
	if patch.AccessControl != nil {
		g.AccessControl = *patch.AccessControl
	}
	if patch.Metrics != nil {
		g.Metrics = *patch.Metrics
	}
	if patch.LastMessageActivity != nil {
		g.LastMessageActivity = patch.LastMessageActivity
	}
	g.UpdatedAt = time.Now()
	s.writes++
	copied := *g
	return &copied, nil
}

func (s *fakeStore) RemoveGroup(ctx context.Context, groupID string, mode RemovalMode) error {
	g, ok := s.groups[groupID]
	if !ok {
		return apperrors.ErrGroupNotFound
	}
	s.writes++
	if mode == RemoveHard {
		delete(s.groups, groupID)
		kept := s.members[:0]
		for _, m := range s.members {
			if m.GroupID != groupID {
				kept = append(kept, m)
			}
		}
		s.members = kept
		return nil
	}
	g.Status = GroupStatusArchived
	for i := range s.members {
		if s.members[i].GroupID == groupID {
			s.members[i].Status = MemberStatusInactive
		}
	}
	return nil
}

func (s *fakeStore) FindMembers(ctx context.Context, groupID, branchID string, activeOnly bool) ([]Membership, error) {
	var out []Membership
	for _, m := range s.members {
		if m.GroupID != groupID {
			continue
		}
		if branchID != "" && m.BranchID != branchID {
			continue
		}
		if activeOnly && m.Status != MemberStatusActive {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) FindMembershipsByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]Membership, error) {
	var out []Membership
	for _, m := range s.members {
		if m.EmployeeID != employeeID {
			continue
		}
		if activeOnly && m.Status != MemberStatusActive {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) InsertMembers(ctx context.Context, members []Membership) error {
	for _, m := range members {
		exists := false
		for _, have := range s.members {
			if have.EmployeeID == m.EmployeeID && have.GroupID == m.GroupID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.seq++
		m.CreatedAt = time.Now()
		m.UpdatedAt = m.CreatedAt
		if m.Status == "" {
			m.Status = MemberStatusActive
		}
		s.members = append(s.members, m)
		s.writes++
	}
	return nil
}

func (s *fakeStore) RemoveMembersByVendorIDs(ctx context.Context, groupID string, vendorUserIDs []string) error {
	if len(vendorUserIDs) == 0 {
		return nil
	}
	idSet := map[string]bool{}
	for _, id := range vendorUserIDs {
		idSet[id] = true
	}
	kept := s.members[:0]
	for _, m := range s.members {
		if m.GroupID == groupID && idSet[m.VendorUserID] {
			s.writes++
			continue
		}
		kept = append(kept, m)
	}
	s.members = kept
	return nil
}

func (s *fakeStore) RecomputeAndPersistStats(ctx context.Context, groupID, branchID string) (*GroupMetrics, error) {
	g, ok := s.groups[groupID]
	if !ok {
		return nil, apperrors.ErrGroupNotFound
	}
	metrics := GroupMetrics{}
	for _, m := range s.members {
		if m.GroupID != groupID {
			continue
		}
		metrics.TotalUserCount++
		if m.Status == MemberStatusActive {
			metrics.ActiveUserCount++
			if m.AccessMode == AccessModeAdmin {
				metrics.ActiveAdminCount++
			}
		}
	}
	g.Metrics = metrics
	s.writes++
	return &metrics, nil
}

func (s *fakeStore) UpdateLastMessageActivity(ctx context.Context, groupID string, activity MessageActivity) error {
	g, ok := s.groups[groupID]
	if !ok {
		return apperrors.ErrGroupNotFound
	}
	g.LastMessageActivity = &activity
	s.writes++
	return nil
}

// --- fake cache -------------------------------------------------------------

type fakeCache struct {
	kv     map[string]string
	hashes map[string]map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{kv: map[string]string{}, hashes: map[string]map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, namespace, key string) (string, error) {
	v, ok := c.kv[namespace+":"+key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	c.kv[namespace+":"+key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, namespace, key string) error {
	delete(c.kv, namespace+":"+key)
	return nil
}

func (c *fakeCache) HGet(ctx context.Context, namespace, key, field string) (string, error) {
	h, ok := c.hashes[namespace+":"+key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	v, ok := h[field]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) HSet(ctx context.Context, namespace, key, field, value string, ttl time.Duration) error {
	h, ok := c.hashes[namespace+":"+key]
	if !ok {
		h = map[string]string{}
		c.hashes[namespace+":"+key] = h
	}
	h[field] = value
	return nil
}

// --- wiring -----------------------------------------------------------------

type testHarness struct {
	store     *fakeStore
	provider  *fakeProvider
	directory *fakeDirectory
	cache     *fakeCache

	reconciler GroupReconciler
	service    ChatGroupService
}

func newHarness(users ...directory.UserRecord) *testHarness {
	h := &testHarness{
		store:     newFakeStore(),
		provider:  newFakeProvider(),
		directory: newFakeDirectory(users...),
		cache:     newFakeCache(),
	}
	cfg := testConfig()
	log := zap.NewNop()
	h.reconciler = NewGroupReconciler(h.store, h.provider, h.directory, cfg, log)
	h.service = NewChatGroupService(h.store, h.reconciler, h.provider, h.directory, h.cache, cfg, log)
	return h
}
