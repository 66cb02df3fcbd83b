package model

import (
	"fmt"
	"hash/fnv"
	"time"
)

const (
	MessagesTable         = "ChatMessages"
	ArchivedMessagesTable = "ChatArchivedMessages"
	ConversationsTable    = "ChatConversations"

	MessagesByConversationIndex = "byConversation"
	MessagesByAgeIndex          = "byAge"
	ConversationsByIDIndex      = "byConversationId"
	ConversationsByCustomer     = "byCustomer"
	ConversationsBySeller       = "bySeller"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t as a fixed-width UTC string. Lexical order of the
// result matches chronological order.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func ParseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, ts)
	if err == nil {
		return t
	}
	t, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func ConversationPairPK(customerID, sellerID string) string {
	return fmt.Sprintf("PAIR#%s#%s", customerID, sellerID)
}

// AgeBuckets is the number of partitions the byAge index spreads hot
// messages over, keeping archival selection a bounded query per bucket.
const AgeBuckets = 16

func AgeBucketFor(messageID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(messageID))
	return AgeBucketName(int(h.Sum32() % AgeBuckets))
}

func AgeBucketName(i int) string {
	return fmt.Sprintf("AGE#%02d", i)
}
