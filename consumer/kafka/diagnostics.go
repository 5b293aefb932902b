package kafka

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// ReaderLag is the position of a single consumer group reader.
type ReaderLag struct {
	ClientID  string `json:"clientId"`
	Partition string `json:"partition,omitempty"`
	Offset    int64  `json:"offset"`
	Lag       int64  `json:"lag"`
}

// TopicLag sums the lag of every reader of a topic.
type TopicLag struct {
	Topic   string      `json:"topic"`
	Lag     int64       `json:"totalLag"`
	Readers []ReaderLag `json:"readers"`
}

// LagReport describes how far the consumer group trails its topics.
type LagReport struct {
	GroupID  string     `json:"groupId"`
	TotalLag int64      `json:"totalLag"`
	Topics   []TopicLag `json:"topics"`
}

// LagMonitor creates consumer group readers and keeps track of the open
// ones so that their lag can be reported.
type LagMonitor struct {
	groupID string

	mu      sync.Mutex
	readers map[*Reader]string
}

// NewLagMonitor returns a monitor for readers of groupID.
func NewLagMonitor(groupID string) *LagMonitor {
	return &LagMonitor{groupID: groupID, readers: make(map[*Reader]string)}
}

// NewReader returns a Reader for cfg that is tracked until it is closed.
// cfg.GroupID defaults to the monitor's group.
func (m *LagMonitor) NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.GroupID == "" {
		cfg.GroupID = m.groupID
	}

	r, err := NewReader(cfg)
	if err != nil {
		return nil, err
	}

	m.track(r, cfg.Topic)

	return r, nil
}

func (m *LagMonitor) track(r *Reader, topic string) {
	m.mu.Lock()
	m.readers[r] = topic
	m.mu.Unlock()

	r.onClose = func() {
		m.mu.Lock()
		delete(m.readers, r)
		m.mu.Unlock()
	}
}

// ConsumerLag reports the lag of every open reader grouped by topic.
func (m *LagMonitor) ConsumerLag(context.Context) (*LagReport, error) {
	m.mu.Lock()
	byTopic := make(map[string][]ReaderLag)
	for r, topic := range m.readers {
		stats := r.r.Stats()
		byTopic[topic] = append(byTopic[topic], ReaderLag{
			ClientID:  stats.ClientID,
			Partition: stats.Partition,
			Offset:    stats.Offset,
			Lag:       stats.Lag,
		})
	}
	m.mu.Unlock()

	report := &LagReport{GroupID: m.groupID, Topics: make([]TopicLag, 0, len(byTopic))}
	for topic, readers := range byTopic {
		sort.Slice(readers, func(i, j int) bool { return readers[i].ClientID < readers[j].ClientID })

		tl := TopicLag{Topic: topic, Readers: readers}
		for _, rl := range readers {
			// Readers report -1 before their first fetch.
			if rl.Lag > 0 {
				tl.Lag += rl.Lag
			}
		}

		report.TotalLag += tl.Lag
		report.Topics = append(report.Topics, tl)
	}

	sort.Slice(report.Topics, func(i, j int) bool { return report.Topics[i].Topic < report.Topics[j].Topic })

	return report, nil
}

type offsetsClient interface {
	Metadata(ctx context.Context, req *kafkago.MetadataRequest) (*kafkago.MetadataResponse, error)
	ListOffsets(ctx context.Context, req *kafkago.ListOffsetsRequest) (*kafkago.ListOffsetsResponse, error)
}

// PartitionRange is the span of offsets retained by a partition.
type PartitionRange struct {
	Partition   int   `json:"partition"`
	FirstOffset int64 `json:"firstOffset"`
	LastOffset  int64 `json:"lastOffset"`
}

// DeadLetterTopic summarizes the messages parked on a dead-letter topic.
// Error is set instead of the counts when the topic could not be
// inspected.
type DeadLetterTopic struct {
	Topic      string           `json:"topic"`
	Messages   int64            `json:"messageCountApprox"`
	Partitions []PartitionRange `json:"partitions,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// DeadLetterInspector reports how many messages the dead-letter topics
// hold.
type DeadLetterInspector struct {
	client offsetsClient
	topics []string
}

// NewDeadLetterInspector returns an inspector for topics on brokers.
func NewDeadLetterInspector(brokers []string, topics []string) (*DeadLetterInspector, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("dead-letter inspector: broker list has not been provided")
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("dead-letter inspector: no topics provided")
	}

	return &DeadLetterInspector{
		client: &kafkago.Client{Addr: kafkago.TCP(brokers...), Timeout: 10 * time.Second},
		topics: topics,
	}, nil
}

// DeadLetterSummary returns one entry per dead-letter topic, in the order
// the topics were configured. The message count is approximate: it is the
// span of retained offsets, which includes compacted or aborted records.
// Failures to inspect a topic are reported on its entry.
func (i *DeadLetterInspector) DeadLetterSummary(ctx context.Context) ([]DeadLetterTopic, error) {
	meta, err := i.client.Metadata(ctx, &kafkago.MetadataRequest{Topics: i.topics})
	if err != nil {
		return nil, fmt.Errorf("dead-letter summary: %w", err)
	}

	partitions := make(map[string][]int, len(meta.Topics))
	topicErrs := make(map[string]error)
	for _, t := range meta.Topics {
		if t.Error != nil {
			topicErrs[t.Name] = t.Error

			continue
		}

		for _, p := range t.Partitions {
			partitions[t.Name] = append(partitions[t.Name], p.ID)
		}
	}

	req := &kafkago.ListOffsetsRequest{Topics: make(map[string][]kafkago.OffsetRequest, len(partitions))}
	for topic, ids := range partitions {
		for _, id := range ids {
			req.Topics[topic] = append(req.Topics[topic], kafkago.FirstOffsetOf(id), kafkago.LastOffsetOf(id))
		}
	}

	offsets := new(kafkago.ListOffsetsResponse)
	if len(req.Topics) != 0 {
		if offsets, err = i.client.ListOffsets(ctx, req); err != nil {
			return nil, fmt.Errorf("dead-letter summary: %w", err)
		}
	}

	summary := make([]DeadLetterTopic, 0, len(i.topics))
	for _, topic := range i.topics {
		entry := DeadLetterTopic{Topic: topic}

		if topicErr, failed := topicErrs[topic]; failed {
			entry.Error = topicErr.Error()
			summary = append(summary, entry)

			continue
		}

		if _, known := partitions[topic]; !known {
			entry.Error = "topic not found"
			summary = append(summary, entry)

			continue
		}

		for _, po := range offsets.Topics[topic] {
			if po.Error != nil {
				entry.Error = fmt.Sprintf("partition %d: %v", po.Partition, po.Error)

				continue
			}

			entry.Partitions = append(entry.Partitions, PartitionRange{
				Partition:   po.Partition,
				FirstOffset: po.FirstOffset,
				LastOffset:  po.LastOffset,
			})

			if span := po.LastOffset - po.FirstOffset; span > 0 {
				entry.Messages += span
			}
		}

		sort.Slice(entry.Partitions, func(a, b int) bool {
			return entry.Partitions[a].Partition < entry.Partitions[b].Partition
		})

		summary = append(summary, entry)
	}

	return summary, nil
}
