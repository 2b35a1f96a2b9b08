package reconcile

import "sync"

// keyedMutex сериализует обработку по строковому ключу.
// События одной подписки применяются строго по одному,
// события разных подписок друг друга не блокируют.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*keyedLock),
	}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
// Запись ключа удаляется, когда последний держатель отпускает его.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &keyedLock{}
		km.locks[key] = lock
	}
	lock.refs++
	km.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		km.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
