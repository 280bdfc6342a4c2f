package studygroup_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
	testutil "github.com/youpass/youpass/tests"
)

type groupFixture struct {
	env    *testutil.Env
	owner  user.User
	member user.User
	other  user.User
	admin  user.User
}

func setupGroups(t *testing.T) groupFixture {
	env := testutil.NewEnv(t)
	return groupFixture{
		env:    env,
		owner:  testutil.CreateUser(t, env.UserRepo, "Owner", "owner@example.com", "", ""),
		member: testutil.CreateUser(t, env.UserRepo, "Member", "member@example.com", "", ""),
		other:  testutil.CreateUser(t, env.UserRepo, "Other", "other@example.com", "", ""),
		admin:  testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", user.RoleAdmin),
	}
}

func (fx groupFixture) create(t *testing.T, name string, private bool, focus ...string) studygroup.Group {
	g, err := fx.env.GroupSvc.Create(context.Background(), fx.owner, studygroup.NewGroup{
		Name:        name,
		Description: name + " description",
		FocusAreas:  focus,
		IsPrivate:   private,
	})
	require.NoError(t, err)
	return g
}

func TestService_Create(t *testing.T) {
	fx := setupGroups(t)

	g := fx.create(t, "Band 8 club", false)
	assert.Equal(t, fx.owner.ID, g.AdminID)
	assert.Equal(t, []string{fx.owner.ID}, g.Members)
	assert.Equal(t, 1, g.MemberCount)
	assert.Equal(t, studygroup.DefaultFocusAreas, g.FocusAreas)
	assert.Equal(t, studygroup.DefaultTargetScore, g.TargetScore)
	assert.Len(t, g.JoinCode, 8)
	assert.Equal(t, strings.ToUpper(g.JoinCode), g.JoinCode)
}

func TestService_CreateJoinCodeCollision(t *testing.T) {
	fx := setupGroups(t)

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	restore := studygroup.SetJoinCodeFunc(func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	})
	defer restore()

	first := fx.create(t, "First", false)
	second := fx.create(t, "Second", false)
	assert.Equal(t, "AAAAAAAA", first.JoinCode)
	assert.Equal(t, "BBBBBBBB", second.JoinCode)
	assert.Empty(t, codes)
}

func TestService_CreateJoinCodeExhausted(t *testing.T) {
	fx := setupGroups(t)

	var calls int
	restore := studygroup.SetJoinCodeFunc(func() (string, error) {
		calls++
		return "SAMECODE", nil
	})
	defer restore()

	fx.create(t, "First", false)
	calls = 0
	_, err := fx.env.GroupSvc.Create(context.Background(), fx.owner, studygroup.NewGroup{Name: "Second", Description: "x"})
	assert.Equal(t, studygroup.ErrJoinCodeTaken, errors.Cause(err))
	assert.Equal(t, studygroup.MaxJoinCodeAttempts, calls)

	restore()
	failing := studygroup.SetJoinCodeFunc(func() (string, error) { return "", fmt.Errorf("no entropy") })
	defer failing()
	_, err = fx.env.GroupSvc.Create(context.Background(), fx.owner, studygroup.NewGroup{Name: "Third", Description: "x"})
	assert.EqualError(t, err, "generating join code: no entropy")
}

func TestService_Query(t *testing.T) {
	fx := setupGroups(t)
	ctx := context.Background()

	public := fx.create(t, "Writing workshop", false, "writing")
	private := fx.create(t, "Secret speaking", true, "speaking")

	ids := func(groups []studygroup.Group) []string {
		out := make([]string, len(groups))
		for i, g := range groups {
			out[i] = g.ID
			assert.Nil(t, g.Messages)
		}
		return out
	}

	tests := []struct {
		name      string
		requester user.User
		filter    studygroup.Filter
		want      []string
	}{
		{name: "outsider sees public only", requester: fx.other, want: []string{public.ID}},
		{name: "member sees private", requester: fx.owner, want: []string{public.ID, private.ID}},
		{name: "admin sees all", requester: fx.admin, want: []string{public.ID, private.ID}},
		{name: "focus area", requester: fx.admin, filter: studygroup.Filter{FocusArea: "Speaking"}, want: []string{private.ID}},
		{name: "search", requester: fx.other, filter: studygroup.Filter{Search: "workshop"}, want: []string{public.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, total, err := fx.env.GroupSvc.Query(ctx, tt.requester, tt.filter, core.Pagination{})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			assert.ElementsMatch(t, tt.want, ids(groups))
		})
	}

	groups, _, err := fx.env.GroupSvc.Query(ctx, fx.other, studygroup.Filter{}, core.Pagination{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].JoinCode, "outsiders never see the join code")
}

func TestService_Get(t *testing.T) {
	fx := setupGroups(t)
	ctx := context.Background()
	public := fx.create(t, "Open", false)
	private := fx.create(t, "Closed", true)

	g, err := fx.env.GroupSvc.Get(ctx, fx.other, public.ID)
	require.NoError(t, err)
	assert.Empty(t, g.JoinCode)

	_, err = fx.env.GroupSvc.Get(ctx, fx.other, private.ID)
	assert.Equal(t, studygroup.ErrPrivate, errors.Cause(err))

	g, err = fx.env.GroupSvc.Get(ctx, fx.owner, private.ID)
	require.NoError(t, err)
	assert.Equal(t, private.JoinCode, g.JoinCode)

	_, err = fx.env.GroupSvc.Get(ctx, fx.admin, private.ID)
	assert.NoError(t, err)

	_, err = fx.env.GroupSvc.Get(ctx, fx.owner, "missing")
	assert.Equal(t, studygroup.ErrNotFound, errors.Cause(err))
}

func TestService_JoinLeave(t *testing.T) {
	fx := setupGroups(t)
	ctx := context.Background()
	g := fx.create(t, "Listening lab", true)

	_, err := fx.env.GroupSvc.Join(ctx, fx.member, "NOPE1234")
	assert.Equal(t, studygroup.ErrInvalidJoinCode, errors.Cause(err))

	joined, err := fx.env.GroupSvc.Join(ctx, fx.member, " "+strings.ToLower(g.JoinCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MemberCount)
	assert.Contains(t, joined.Members, fx.member.ID)

	_, err = fx.env.GroupSvc.Join(ctx, fx.member, g.JoinCode)
	assert.Equal(t, studygroup.ErrAlreadyMember, errors.Cause(err))

	assert.Equal(t, studygroup.ErrAdminCannotLeave, errors.Cause(fx.env.GroupSvc.Leave(ctx, fx.owner, g.ID)))
	assert.Equal(t, studygroup.ErrNotMember, errors.Cause(fx.env.GroupSvc.Leave(ctx, fx.other, g.ID)))
	require.NoError(t, fx.env.GroupSvc.Leave(ctx, fx.member, g.ID))

	_, err = fx.env.GroupSvc.Get(ctx, fx.member, g.ID)
	assert.Equal(t, studygroup.ErrPrivate, errors.Cause(err))
}

func TestService_UpdateDelete(t *testing.T) {
	fx := setupGroups(t)
	ctx := context.Background()
	g := fx.create(t, "Grammar geeks", false, "writing")
	_, err := fx.env.GroupSvc.Join(ctx, fx.member, g.JoinCode)
	require.NoError(t, err)

	name := "Grammar gurus"
	_, err = fx.env.GroupSvc.Update(ctx, fx.member, g.ID, studygroup.UpdateGroup{Name: &name})
	assert.Equal(t, studygroup.ErrNotAuthorized, errors.Cause(err))

	score := 8.5
	updated, err := fx.env.GroupSvc.Update(ctx, fx.owner, g.ID, studygroup.UpdateGroup{
		Name:        &name,
		TargetScore: &score,
		FocusAreas:  []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, score, updated.TargetScore)
	assert.Equal(t, studygroup.DefaultFocusAreas, updated.FocusAreas)
	assert.Equal(t, g.JoinCode, updated.JoinCode)
	assert.Len(t, updated.Members, 2)

	assert.Equal(t, studygroup.ErrNotAuthorized, errors.Cause(fx.env.GroupSvc.Delete(ctx, fx.member, g.ID)))
	require.NoError(t, fx.env.GroupSvc.Delete(ctx, fx.admin, g.ID))
	_, err = fx.env.GroupSvc.Get(ctx, fx.owner, g.ID)
	assert.Equal(t, studygroup.ErrNotFound, errors.Cause(err))
}

func TestService_Messages(t *testing.T) {
	fx := setupGroups(t)
	ctx := context.Background()
	g := fx.create(t, "Speaking partners", false)

	msgs, err := fx.env.GroupSvc.ListMessages(ctx, fx.owner, g.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotNil(t, msgs)

	_, err = fx.env.GroupSvc.PostMessage(ctx, fx.other, g.ID, studygroup.NewMessage{Content: "hi"})
	assert.Equal(t, studygroup.ErrMembersOnly, errors.Cause(err))
	_, err = fx.env.GroupSvc.ListMessages(ctx, fx.other, g.ID)
	assert.Equal(t, studygroup.ErrMembersOnly, errors.Cause(err))

	m, err := fx.env.GroupSvc.PostMessage(ctx, fx.owner, g.ID, studygroup.NewMessage{
		Content:     "Session notes",
		Attachments: []studygroup.Attachment{{FileURL: "https://files.example.com/notes.pdf", FileName: "notes.pdf"}},
	})
	require.NoError(t, err)
	assert.Equal(t, fx.owner.ID, m.AuthorID)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "other", m.Attachments[0].FileType)

	msgs, err = fx.env.GroupSvc.ListMessages(ctx, fx.admin, g.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, m.ID, msgs[0].ID)

	got, err := fx.env.GroupSvc.Get(ctx, fx.owner, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)
}
