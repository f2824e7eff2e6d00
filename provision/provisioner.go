// Package provision creates team roles and private channels and assigns members.
// Every operation is idempotent; calling EnsureTeam again only fills in what is missing.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/utils"
)

// ErrProvisioning marks a failed role, channel or membership step.
var ErrProvisioning = errors.New("provisioning failed")

// ErrNoTeam is returned when a submission carries no team name.
var ErrNoTeam = errors.New("team name is empty")

// Report describes what EnsureTeam found, created and assigned.
type Report struct {
	Team            string
	RoleID          string
	CategoryID      string
	CreatedRole     bool
	CreatedCategory bool
	CreatedChannels []string
	Assigned        []string
	AlreadyMember   []string
	// Unresolved identities could not be matched to a guild member.
	Unresolved []string
	// Failed identities matched a member but the role could not be added.
	Failed []string
}

// Complete reports whether every identity now holds the team role.
func (r Report) Complete() bool {
	return r.RoleID != "" && r.CategoryID != "" && len(r.Unresolved) == 0 && len(r.Failed) == 0
}

// Provisioner ensures a team's role, category and channels exist and that
// the named members hold the role.
type Provisioner struct {
	guild  chat.Guild
	cache  Cache
	locks  *utils.KeyedMutex
	logger *slog.Logger

	retryMu sync.Mutex
	retry   map[string]bool
}

// New creates a Provisioner. A nil cache keeps entries in memory without expiry.
func New(guild chat.Guild, cache Cache, logger *slog.Logger) *Provisioner {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		guild:  guild,
		cache:  cache,
		locks:  utils.NewKeyedMutex(),
		logger: logger,
		retry:  make(map[string]bool),
	}
}

// EnsureTeam makes sure the team's role and spaces exist and assigns the role
// to every identity that resolves to a guild member. Unresolved identities are
// reported, not treated as errors.
func (p *Provisioner) EnsureTeam(ctx context.Context, team string, identities []string) (Report, error) {
	team = strings.TrimSpace(team)
	report := Report{Team: team}
	if team == "" {
		return report, fmt.Errorf("%w: %w", ErrProvisioning, ErrNoTeam)
	}

	unlock := p.locks.Lock(cacheKey(team))
	defer unlock()

	entry, hit, err := p.cache.Get(ctx, team)
	if err != nil {
		p.logger.Warn("team cache read failed", "team", team, "error", err)
		hit = false
	}
	// A team still owed work gets its structure re-checked even when cached,
	// so channels removed by hand are recreated.
	if hit && entry.RoleID != "" && entry.CategoryID != "" && !p.NeedsRetry(team) {
		report.RoleID = entry.RoleID
		report.CategoryID = entry.CategoryID
	} else {
		if err := p.ensureStructure(ctx, &report); err != nil {
			p.markRetry(team, true)
			return report, fmt.Errorf("%w: team %q: %w", ErrProvisioning, team, err)
		}
		if err := p.cache.Set(ctx, team, Entry{RoleID: report.RoleID, CategoryID: report.CategoryID}); err != nil {
			p.logger.Warn("team cache write failed", "team", team, "error", err)
		}
	}

	if roleGone := p.assignMembers(ctx, &report, identities); roleGone && hit {
		// The cached role was deleted; rebuild on the next attempt.
		if err := p.cache.Forget(ctx, team); err != nil {
			p.logger.Warn("team cache forget failed", "team", team, "error", err)
		}
		p.logger.Info("cached team structure is stale", "team", team, "role", report.RoleID)
	}

	p.markRetry(team, !report.Complete())
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: team %q: could not assign role to %s",
			ErrProvisioning, team, strings.Join(report.Failed, ", "))
	}
	return report, nil
}

// NeedsRetry reports whether the last EnsureTeam for team left work undone.
func (p *Provisioner) NeedsRetry(team string) bool {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()
	return p.retry[cacheKey(team)]
}

func (p *Provisioner) markRetry(team string, pending bool) {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()
	if pending {
		p.retry[cacheKey(team)] = true
	} else {
		delete(p.retry, cacheKey(team))
	}
}

func (p *Provisioner) ensureStructure(ctx context.Context, report *Report) error {
	roleID, created, err := p.ensureRole(ctx, report.Team)
	if err != nil {
		return err
	}
	report.RoleID = roleID
	report.CreatedRole = created

	return p.ensureSpaces(ctx, report)
}

func (p *Provisioner) ensureRole(ctx context.Context, team string) (string, bool, error) {
	roles, err := p.guild.Roles(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, team) {
			return r.ID, false, nil
		}
	}

	role, err := p.guild.CreateRole(ctx, team)
	if err != nil {
		return "", false, fmt.Errorf("create role: %w", err)
	}
	p.logger.Info("team role created", "team", team, "role", role.ID)
	return role.ID, true, nil
}

func (p *Provisioner) ensureSpaces(ctx context.Context, report *Report) error {
	channels, err := p.guild.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	for _, c := range channels {
		if c.Kind == chat.ChannelCategory && strings.EqualFold(c.Name, report.Team) {
			report.CategoryID = c.ID
			break
		}
	}
	if report.CategoryID == "" {
		category, err := p.guild.CreateChannel(ctx, chat.ChannelSpec{
			Name:      report.Team,
			Kind:      chat.ChannelCategory,
			VisibleTo: report.RoleID,
		})
		if err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		report.CategoryID = category.ID
		report.CreatedCategory = true
		p.logger.Info("team category created", "team", report.Team, "category", category.ID)
	}

	wanted := []chat.ChannelSpec{
		{Name: TextChannelName(report.Team), Kind: chat.ChannelText},
		{Name: report.Team, Kind: chat.ChannelVoice},
	}
	for _, spec := range wanted {
		if hasChild(channels, report.CategoryID, spec) {
			continue
		}
		spec.ParentID = report.CategoryID
		spec.VisibleTo = report.RoleID
		created, err := p.guild.CreateChannel(ctx, spec)
		if err != nil {
			return fmt.Errorf("create channel %q: %w", spec.Name, err)
		}
		report.CreatedChannels = append(report.CreatedChannels, created.ID)
	}
	return nil
}

func hasChild(channels []chat.Channel, parentID string, spec chat.ChannelSpec) bool {
	for _, c := range channels {
		if c.ParentID == parentID && c.Kind == spec.Kind && strings.EqualFold(c.Name, spec.Name) {
			return true
		}
	}
	return false
}

// TextChannelName converts a team name into Discord's text channel form.
func TextChannelName(team string) string {
	return strings.Join(strings.Fields(strings.ToLower(team)), "-")
}

// assignMembers reports whether the role itself turned out to be missing.
func (p *Provisioner) assignMembers(ctx context.Context, report *Report, identities []string) (roleGone bool) {
	for _, identity := range identities {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			continue
		}

		member, found, err := p.resolve(ctx, identity)
		if err != nil {
			p.logger.Warn("member lookup failed", "team", report.Team, "identity", identity, "error", err)
			report.Failed = append(report.Failed, identity)
			continue
		}
		if !found {
			p.logger.Info("member not found", "team", report.Team, "identity", identity)
			report.Unresolved = append(report.Unresolved, identity)
			continue
		}
		if member.HasRole(report.RoleID) {
			report.AlreadyMember = append(report.AlreadyMember, identity)
			continue
		}

		if err := p.guild.AddMemberRole(ctx, member.UserID, report.RoleID); err != nil {
			p.logger.Warn("role assignment failed", "team", report.Team, "identity", identity, "error", err)
			report.Failed = append(report.Failed, identity)
			if errors.Is(err, chat.ErrNotFound) {
				roleGone = true
			}
			continue
		}
		p.logger.Info("role assigned", "team", report.Team, "identity", identity, "user", member.UserID)
		report.Assigned = append(report.Assigned, identity)
	}
	return roleGone
}

// SplitIdentity separates a legacy "name#1234" identity into name and discriminator.
func SplitIdentity(identity string) (name, discriminator string) {
	identity = strings.TrimPrefix(strings.TrimSpace(identity), "@")
	if i := strings.LastIndex(identity, "#"); i > 0 {
		return identity[:i], identity[i+1:]
	}
	return identity, ""
}

func (p *Provisioner) resolve(ctx context.Context, identity string) (chat.Member, bool, error) {
	name, discriminator := SplitIdentity(identity)
	if name == "" {
		return chat.Member{}, false, nil
	}

	members, err := p.guild.SearchMembers(ctx, name)
	if err != nil {
		return chat.Member{}, false, err
	}
	for _, m := range members {
		if m.Username != name {
			continue
		}
		if discriminator != "" && !legacyDiscriminator(m.Discriminator) && m.Discriminator != discriminator {
			continue
		}
		return m, true, nil
	}
	return chat.Member{}, false, nil
}

// Accounts migrated to unique usernames report "0" as their discriminator.
func legacyDiscriminator(d string) bool {
	return d == "" || d == "0"
}
