package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/spf13/afero/sftpfs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/melih-ucgun/pldownloader/internal/config"
)

// SFTPStorage keeps the storage roots on a remote host reached over SSH.
type SFTPStorage struct {
	ssh    *ssh.Client
	sftp   *sftp.Client
	fs     afero.Fs
	remote config.Remote
}

func NewSFTPStorage(ctx context.Context, remote config.Remote) (*SFTPStorage, error) {
	var authMethods []ssh.AuthMethod

	if remote.SSHKeyPath != "" {
		key, err := os.ReadFile(remote.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	} else {
		authMethods = append(authMethods, ssh.Password(remote.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if remote.KnownHostsPath != "" {
		cb, err := knownhosts.New(remote.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	sshConfig := &ssh.ClientConfig{
		User:            remote.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(remote.Address, strconv.Itoa(remote.Port))
	dialer := net.Dialer{Timeout: sshConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh connection failed (%s): %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake failed (%s): %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sftp subsystem unavailable (%s): %w", addr, err)
	}

	return &SFTPStorage{
		ssh:    client,
		sftp:   sftpClient,
		fs:     sftpfs.New(sftpClient),
		remote: remote,
	}, nil
}

func (s *SFTPStorage) Fs() afero.Fs { return s.fs }

func (s *SFTPStorage) Describe() string {
	return fmt.Sprintf("sftp://%s@%s", s.remote.User, net.JoinHostPort(s.remote.Address, strconv.Itoa(s.remote.Port)))
}

func (s *SFTPStorage) Close() error {
	if s.sftp != nil {
		s.sftp.Close()
	}
	if s.ssh != nil {
		return s.ssh.Close()
	}
	return nil
}

// Open picks SFTP storage when a remote is configured, the local file system otherwise.
func Open(ctx context.Context, remote *config.Remote) (Storage, error) {
	if remote == nil || remote.Address == "" {
		return NewLocalStorage(), nil
	}
	return NewSFTPStorage(ctx, *remote)
}
