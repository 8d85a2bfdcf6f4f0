// Package machinemock hand-authors gomock-style doubles for the
// internal/machine contracts, in the shape mockgen would generate (as
// sarchlab-akita's packages do via a `//go:generate mockgen` directive) —
// written by hand here since the toolchain that would run mockgen is
// unavailable in this environment.
package machinemock

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/nachos-go/kernel/internal/machine"
)

// MockConsole is a mock of the machine.Console interface.
type MockConsole struct {
	ctrl *gomock.Controller
	recorder *MockConsoleMockRecorder
}

// MockConsoleMockRecorder is the mock recorder for MockConsole.
type MockConsoleMockRecorder struct {
	mock *MockConsole
}

// NewMockConsole creates a new mock instance.
func NewMockConsole(ctrl *gomock.Controller) *MockConsole {
	mock := &MockConsole{ctrl: ctrl}
	mock.recorder = &MockConsoleMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockConsole) EXPECT() *MockConsoleMockRecorder {
	return m.recorder
}

// Read mocks base method.
func (m *MockConsole) Read(buf []byte) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Read", buf)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Read indicates an expected call of Read.
func (mr *MockConsoleMockRecorder) Read(buf interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Read", reflect.TypeOf((*MockConsole)(nil).Read), buf)
}

// Write mocks base method.
func (m *MockConsole) Write(buf []byte) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Write", buf)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Write indicates an expected call of Write.
func (mr *MockConsoleMockRecorder) Write(buf interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Write", reflect.TypeOf((*MockConsole)(nil).Write), buf)
}

var _ machine.Console = (*MockConsole)(nil)

// MockFileSystem is a mock of the machine.FileSystem interface.
type MockFileSystem struct {
	ctrl *gomock.Controller
	recorder *MockFileSystemMockRecorder
}

// MockFileSystemMockRecorder is the mock recorder for MockFileSystem.
type MockFileSystemMockRecorder struct {
	mock *MockFileSystem
}

// NewMockFileSystem creates a new mock instance.
func NewMockFileSystem(ctrl *gomock.Controller) *MockFileSystem {
	mock := &MockFileSystem{ctrl: ctrl}
	mock.recorder = &MockFileSystemMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFileSystem) EXPECT() *MockFileSystemMockRecorder {
	return m.recorder
}

// Open mocks base method.
func (m *MockFileSystem) Open(name string, create bool) (machine.OpenFile, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Open", name, create)
	ret0, _ := ret[0].(machine.OpenFile)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Open indicates an expected call of Open.
func (mr *MockFileSystemMockRecorder) Open(name, create interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Open", reflect.TypeOf((*MockFileSystem)(nil).Open), name, create)
}

// Remove mocks base method.
func (m *MockFileSystem) Remove(name string) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Remove", name)
	ret0, _ := ret[0].(bool)
	return ret0
}

// Remove indicates an expected call of Remove.
func (mr *MockFileSystemMockRecorder) Remove(name interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Remove", reflect.TypeOf((*MockFileSystem)(nil).Remove), name)
}

var _ machine.FileSystem = (*MockFileSystem)(nil)

// MockOpenFile is a mock of the machine.OpenFile interface.
type MockOpenFile struct {
	ctrl *gomock.Controller
	recorder *MockOpenFileMockRecorder
}

// MockOpenFileMockRecorder is the mock recorder for MockOpenFile.
type MockOpenFileMockRecorder struct {
	mock *MockOpenFile
}

// NewMockOpenFile creates a new mock instance.
func NewMockOpenFile(ctrl *gomock.Controller) *MockOpenFile {
	mock := &MockOpenFile{ctrl: ctrl}
	mock.recorder = &MockOpenFileMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOpenFile) EXPECT() *MockOpenFileMockRecorder {
	return m.recorder
}

// Read mocks base method.
func (m *MockOpenFile) Read(buf []byte, off int64, length int) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Read", buf, off, length)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Read indicates an expected call of Read.
func (mr *MockOpenFileMockRecorder) Read(buf, off, length interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Read", reflect.TypeOf((*MockOpenFile)(nil).Read), buf, off, length)
}

// Write mocks base method.
func (m *MockOpenFile) Write(buf []byte, off int64, length int) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Write", buf, off, length)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Write indicates an expected call of Write.
func (mr *MockOpenFileMockRecorder) Write(buf, off, length interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Write", reflect.TypeOf((*MockOpenFile)(nil).Write), buf, off, length)
}

// Seek mocks base method.
func (m *MockOpenFile) Seek(pos int64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Seek", pos)
	ret0, _ := ret[0].(error)
	return ret0
}

// Seek indicates an expected call of Seek.
func (mr *MockOpenFileMockRecorder) Seek(pos interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Seek", reflect.TypeOf((*MockOpenFile)(nil).Seek), pos)
}

// Close mocks base method.
func (m *MockOpenFile) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockOpenFileMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockOpenFile)(nil).Close))
}

// Name mocks base method.
func (m *MockOpenFile) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	ret0, _ := ret[0].(string)
	return ret0
}

// Name indicates an expected call of Name.
func (mr *MockOpenFileMockRecorder) Name() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockOpenFile)(nil).Name))
}

var _ machine.OpenFile = (*MockOpenFile)(nil)
