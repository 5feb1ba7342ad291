package storage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/Shopify/sarama"

	"github.com/janelia-flyem/cardiowave/cardio"
)

var (
	// producer
	kafkaProducer sarama.AsyncProducer

	// the kafka topic for activity logging
	kafkaActivityTopicName string

	badTopicChars = regexp.MustCompile(`[^a-zA-Z0-9\._\-]+`)
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * cardio.Kilo

// KafkaConfig describes kafka servers receiving simulation activity: domain loads,
// pacing, snapshots and restores.
type KafkaConfig struct {
	TopicActivity string   `toml:"topic_activity"` // if supplied, will be override topic for activity log
	Servers       []string `toml:"servers"`
	BufferSize    int      `toml:"buffer_size"` // producer channel buffer size
}

// KafkaActivityTopic returns the topic name used for logging activity for this server.
func KafkaActivityTopic() string {
	return kafkaActivityTopicName
}

// ActivityTopic returns the sanitized activity topic for the config and host.
func (kc KafkaConfig) ActivityTopic(hostID string) string {
	topic := kc.TopicActivity
	if topic == "" {
		topic = "cardiowave-activity-" + hostID
	}
	return badTopicChars.ReplaceAllString(topic, "-")
}

// Initialize starts the activity producer.  Nothing is done if no servers are configured.
func (kc KafkaConfig) Initialize(hostID string) error {
	if len(kc.Servers) == 0 {
		return nil
	}
	kafkaActivityTopicName = kc.ActivityTopic(hostID)

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	var err error
	if kafkaProducer, err = sarama.NewAsyncProducer(kc.Servers, config); err != nil {
		return err
	}

	go func() {
		for err := range kafkaProducer.Errors() {
			cardio.Errorf("error on kafka send to topic %q: %v\n", err.Msg.Topic, err)
		}
	}()
	cardio.Infof("Kafka topic for simulation activity: %s\n", kafkaActivityTopicName)
	return nil
}

// KafkaShutdown makes sure that the kafka queue is flushed before stopping.
func KafkaShutdown() {
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			cardio.Errorf("Kafka producer had error on close: %v\n", err)
		} else {
			cardio.Infof("Successfully shut down kafka producer.\n")
		}
		kafkaProducer = nil
	}
}

// LogActivityToKafka publishes activity.  It returns immediately.
func LogActivityToKafka(activity map[string]interface{}) {
	if kafkaProducer != nil {
		go func() {
			jsonmsg, err := json.Marshal(activity)
			if err != nil {
				cardio.Errorf("unable to marshal activity for kafka logging: %v\n", err)
				return
			}
			if err := KafkaProduceMsg(jsonmsg, kafkaActivityTopicName); err != nil {
				cardio.Errorf("unable to publish activity: %v\n", err)
			}
		}()
	}
}

// KafkaProduceMsg sends a message to kafka
func KafkaProduceMsg(value []byte, topicName string) error {
	if kafkaProducer == nil {
		return nil
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	msg := &sarama.ProducerMessage{Topic: topicName, Value: sarama.ByteEncoder(value), Key: timeKey}
	kafkaProducer.Input() <- msg
	return nil
}
