package connection

import "sync"

// BytePool: пул буферов чтения, которыми read pump передаёт данные потребителю.
type BytePool struct {
	pool sync.Pool
}

// NewBytePool создаёт пул с указанной начальной ёмкостью для новых слайсов.
func NewBytePool(defaultCap int) *BytePool {
	p := &BytePool{}
	p.pool.New = func() any {
		return make([]byte, 0, defaultCap)
	}
	return p
}

// Get возвращает слайс длиной size, по возможности из пула.
// Содержимое не обнуляется: Read перезаписывает его целиком.
func (p *BytePool) Get(size int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < size {
		p.pool.Put(b)
		return make([]byte, size)
	}
	return b[:size]
}

// Put возвращает слайс в пул.
func (p *BytePool) Put(b []byte) {
	if b == nil {
		return
	}
	p.pool.Put(b[:0])
}

// readPool общий для всех соединений процесса.
var readPool = NewBytePool(readChunkSize)
