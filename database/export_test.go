package database

// putRawEmbedding stores an already encoded blob, bypassing the encoder
func (m *MemoryStore) putRawEmbedding(photoID int64, modelName string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[embeddingKey{photoID, modelName}] = append([]byte(nil), blob...)
}
