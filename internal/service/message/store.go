package message

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"storefront-chat/internal/database"
	"storefront-chat/internal/errs"
	"storefront-chat/internal/model"

	"github.com/google/uuid"
)

const (
	MaxContentLength = 4000
	MaxImages        = 10
	DefaultPageSize  = 30
	MaxPageSize      = 100
	MaxPage          = 10000
)

type CreateParams struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	Images         []string
	Product        *model.ProductSnapshot
}

type DayGroup struct {
	Date     string
	Messages []model.MessageItem
}

// History is one page of a conversation, oldest to newest within the page.
type History struct {
	Messages []model.MessageItem
	Days     []DayGroup
	Page     int
	PageSize int
	HasMore  bool
}

type MoveResult struct {
	Selected        int
	Archived        int
	AlreadyArchived int
	Deleted         int
}

type Options struct {
	Now      func() time.Time
	NewID    func() string
	Location *time.Location
	PageSize int
}

// Store is the logical message store over the hot and archive partitions.
type Store struct {
	hot      HotRepository
	archive  ArchiveRepository
	now      func() time.Time
	newID    func() string
	loc      *time.Location
	pageSize int
}

func NewStore(hot HotRepository, archive ArchiveRepository, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = DefaultPageSize
	}
	return &Store{
		hot:      hot,
		archive:  archive,
		now:      opts.Now,
		newID:    opts.NewID,
		loc:      opts.Location,
		pageSize: opts.PageSize,
	}
}

func NewDynamoStore(db *database.Database, opts Options) *Store {
	return NewStore(NewDynamoHotRepository(db), NewDynamoArchiveRepository(db), opts)
}

func NewMongoStore(db *database.MongoDatabase, opts Options) *Store {
	return NewStore(NewMongoHotRepository(db), NewMongoArchiveRepository(db), opts)
}

func NewMemoryStore(opts Options) *Store {
	return NewStore(NewMemoryHotRepository(), NewMemoryArchiveRepository(), opts)
}

func normalizeImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img != "" {
			out = append(out, img)
		}
	}
	return out
}

func (s *Store) CreateMessage(ctx context.Context, params CreateParams) (model.MessageItem, error) {
	conversationID := strings.TrimSpace(params.ConversationID)
	senderID := strings.TrimSpace(params.SenderID)
	receiverID := strings.TrimSpace(params.ReceiverID)
	content := strings.TrimSpace(params.Content)
	images := normalizeImages(params.Images)

	switch {
	case conversationID == "":
		return model.MessageItem{}, errs.Validation("conversationId is required")
	case senderID == "" || receiverID == "":
		return model.MessageItem{}, errs.Validation("sender and receiver are required")
	case senderID == receiverID:
		return model.MessageItem{}, errs.Validation("sender and receiver must differ")
	case content == "" && len(images) == 0:
		return model.MessageItem{}, errs.Validation("message must have content or at least one image")
	case utf8.RuneCountInString(content) > MaxContentLength:
		return model.MessageItem{}, errs.Validation("message content is too long")
	case len(images) > MaxImages:
		return model.MessageItem{}, errs.Validation("too many images attached")
	}

	var product *model.ProductSnapshot
	if params.Product != nil {
		snapshot := *params.Product
		product = &snapshot
	}

	nowStr := model.FormatTime(s.now())
	id := s.newID()
	msg := model.MessageItem{
		MessageID:      id,
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		AgeBucket:      model.AgeBucketFor(id),
		Content:        content,
		Images:         images,
		Status:         model.MessageStatusSent,
		Product:        product,
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
	}
	if len(msg.Images) == 0 {
		msg.Images = nil
	}

	if err := s.hot.Insert(ctx, msg); err != nil {
		return model.MessageItem{}, errs.Unavailable("failed to send message", err)
	}
	return msg, nil
}

type historyEntry struct {
	msg      model.MessageItem
	archived bool
}

// GetHistory returns page (1 = newest) of a conversation merged across the
// hot and archive partitions. A message present in both is returned once,
// using the hot copy.
func (s *Store) GetHistory(ctx context.Context, conversationID string, page, pageSize int) (History, error) {
	if strings.TrimSpace(conversationID) == "" {
		return History{}, errs.Validation("conversationId is required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page > MaxPage {
		return History{}, errs.Validation("page is out of range")
	}

	need := page*pageSize + 1

	hot, err := s.hot.ListByConversation(ctx, conversationID, need)
	if err != nil {
		return History{}, errs.Unavailable("failed to load messages", err)
	}

	entries := make([]historyEntry, 0, len(hot))
	seen := make(map[string]struct{}, len(hot))
	for _, m := range hot {
		if _, dup := seen[m.MessageID]; dup {
			continue
		}
		seen[m.MessageID] = struct{}{}
		entries = append(entries, historyEntry{msg: m})
	}

	if len(hot) < need {
		archived, err := s.archive.ListByConversation(ctx, conversationID, need)
		if err != nil {
			return History{}, errs.Unavailable("failed to load archived messages", err)
		}
		for _, a := range archived {
			if _, dup := seen[a.OriginalID]; dup {
				continue
			}
			seen[a.OriginalID] = struct{}{}
			entries = append(entries, historyEntry{msg: a.Message(), archived: true})
		}
	}

	// Newest first; on equal timestamps the archived row sorts as older.
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.msg.CreatedAt != b.msg.CreatedAt {
			return a.msg.CreatedAt > b.msg.CreatedAt
		}
		if a.archived != b.archived {
			return !a.archived
		}
		return a.msg.MessageID > b.msg.MessageID
	})

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(entries) {
		start = len(entries)
	}
	if end > len(entries) {
		end = len(entries)
	}

	window := make([]model.MessageItem, 0, end-start)
	for i := end - 1; i >= start; i-- {
		window = append(window, entries[i].msg)
	}

	return History{
		Messages: window,
		Days:     s.groupByDay(window),
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(entries) > end,
	}, nil
}

func (s *Store) groupByDay(messages []model.MessageItem) []DayGroup {
	var days []DayGroup
	for _, m := range messages {
		day := model.ParseTime(m.CreatedAt).In(s.loc).Format("2006-01-02")
		if n := len(days); n > 0 && days[n-1].Date == day {
			days[n-1].Messages = append(days[n-1].Messages, m)
			continue
		}
		days = append(days, DayGroup{Date: day, Messages: []model.MessageItem{m}})
	}
	return days
}

// MarkRead advances every message addressed to readerID to read.
func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	return s.advance(ctx, conversationID, readerID, model.MessageStatusRead)
}

// MarkDelivered advances sent messages addressed to receiverID to delivered.
func (s *Store) MarkDelivered(ctx context.Context, conversationID, receiverID string) (int, error) {
	return s.advance(ctx, conversationID, receiverID, model.MessageStatusDelivered)
}

func (s *Store) advance(ctx context.Context, conversationID, receiverID string, to model.MessageStatus) (int, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(receiverID) == "" {
		return 0, errs.Validation("conversationId and user are required")
	}
	n, err := s.hot.AdvanceStatus(ctx, conversationID, receiverID, to, model.FormatTime(s.now()))
	if err != nil {
		return 0, errs.Unavailable("failed to update message status", err)
	}
	return n, nil
}

// Move relocates one batch of hot messages created before cutoff into the
// archive. The archive write must succeed before anything is deleted from
// the hot partition; ids a previous run already archived are not rewritten.
func (s *Store) Move(ctx context.Context, cutoff time.Time, batchSize int) (MoveResult, error) {
	var res MoveResult

	candidates, err := s.hot.ListOlderThan(ctx, model.FormatTime(cutoff), batchSize)
	if err != nil {
		return res, errs.Unavailable("select messages for archival", err)
	}
	res.Selected = len(candidates)
	if len(candidates) == 0 {
		return res, nil
	}

	ids := make([]string, len(candidates))
	for i, m := range candidates {
		ids[i] = m.MessageID
	}

	existing, err := s.archive.ExistingIDs(ctx, ids)
	if err != nil {
		return res, errs.Unavailable("check archived ids", err)
	}

	archivedAt := s.now()
	toInsert := make([]model.ArchivedMessageItem, 0, len(candidates))
	for _, m := range candidates {
		if _, ok := existing[m.MessageID]; ok {
			continue
		}
		toInsert = append(toInsert, model.ArchiveOf(m, archivedAt))
	}

	if len(toInsert) > 0 {
		if err := s.archive.InsertBatch(ctx, toInsert); err != nil {
			return res, errs.Unavailable("insert archive batch", err)
		}
	}
	res.Archived = len(toInsert)
	res.AlreadyArchived = len(candidates) - len(toInsert)

	if err := s.hot.DeleteByIDs(ctx, ids); err != nil {
		return res, errs.Unavailable("delete archived messages from hot store", err)
	}
	res.Deleted = len(ids)
	return res, nil
}

// Reconcile removes from the hot partition messages older than cutoff that
// are already confirmed in the archive, left behind by a failed delete.
func (s *Store) Reconcile(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	candidates, err := s.hot.ListOlderThan(ctx, model.FormatTime(cutoff), batchSize)
	if err != nil {
		return 0, errs.Unavailable("select messages for reconciliation", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]string, len(candidates))
	for i, m := range candidates {
		ids[i] = m.MessageID
	}
	existing, err := s.archive.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, errs.Unavailable("check archived ids", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}

	duplicates := make([]string, 0, len(existing))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			duplicates = append(duplicates, id)
		}
	}
	if err := s.hot.DeleteByIDs(ctx, duplicates); err != nil {
		return 0, errs.Unavailable("delete reconciled messages", err)
	}
	return len(duplicates), nil
}
