package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"cda-delta-clone/config"
)

// AzureStore is the Azure Blob/DFS Object-Store Gateway backend.
//
// Grounded on original_source/guidewire/storage.py's AzureStorage for
// the environment-variable contract (account name/key vs.
// tenant/client secret, custom blob/dfs authority overrides), adapted
// to the same Store interface S3Store implements. Only shared-key
// (account name + account key) authentication is supported: tenant /
// client-secret credentials are rejected by NewAzure. URIFor always
// uses the account's dfs.core.windows.net host; the DFS authority
// override is not applied.
type AzureStore struct {
	client      *azblob.Client
	container   string
	prefix      string
	accountName string
}

// NewAzure builds an AzureStore for the given resolved credentials,
// container and key prefix.
func NewAzure(creds config.Credentials, containerName, prefix string) (*AzureStore, error) {
	if creds.AccountName == "" {
		return nil, fmt.Errorf("AccountName must be set")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", creds.AccountName)
	if creds.BlobStorageAuthority != "" {
		serviceURL = fmt.Sprintf("%s://%s/", creds.BlobStorageScheme, creds.BlobStorageAuthority)
	}

	var client *azblob.Client
	var err error
	switch {
	case creds.ClientID != "" && creds.ClientSecret != "" && creds.TenantID != "":
		return nil, fmt.Errorf("service-principal auth requires wiring azidentity.NewClientSecretCredential; not enabled in this build")
	case creds.AccountKey != "":
		cred, credErr := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("building shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("AccountKey must be set")
	}
	if err != nil {
		return nil, fmt.Errorf("creating azure blob client: %w", err)
	}

	return &AzureStore{client: client, container: containerName, prefix: strings.Trim(prefix, "/"), accountName: creds.AccountName}, nil
}

// normalizeKey accepts either a bare key or a full "abfss://container@
// account.dfs.core.windows.net/key" URI (as manifest dataFilesPath and
// target_table_uri values arrive) and returns the container-relative
// key.
func (a *AzureStore) normalizeKey(key string) string {
	for _, scheme := range []string{"abfss://", "https://", "http://"} {
		rest, ok := strings.CutPrefix(key, scheme)
		if !ok {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			return strings.TrimPrefix(rest[idx+1:], a.prefix)
		}
		return ""
	}
	return key
}

func (a *AzureStore) fullKey(key string) string {
	key = a.normalizeKey(key)
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

func (a *AzureStore) Scheme() string { return "abfss" }

func (a *AzureStore) URIFor(key string) string {
	return fmt.Sprintf("abfss://%s@%s.dfs.core.windows.net/%s", a.container, a.accountName, a.fullKey(key))
}

func classifyAzureError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case 403:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case 409, 412:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case 500, 502, 503, 504:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func (a *AzureStore) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	fullPrefix := a.fullKey(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var out []ObjectInfo
	if recursive {
		pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: &fullPrefix})
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, classifyAzureError(err)
			}
			for _, item := range page.Segment.BlobItems {
				out = append(out, ObjectInfo{
					Key:     strings.TrimPrefix(strings.TrimPrefix(*item.Name, a.prefix), "/"),
					Size:    derefInt64(item.Properties.ContentLength),
					ETag:    string(*item.Properties.ETag),
					ModTime: *item.Properties.LastModified,
				})
			}
		}
		return out, nil
	}

	cc := a.client.ServiceClient().NewContainerClient(a.container)
	pager := cc.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{Prefix: &fullPrefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classifyAzureError(err)
		}
		for _, item := range page.Segment.BlobItems {
			out = append(out, ObjectInfo{
				Key:     strings.TrimPrefix(strings.TrimPrefix(*item.Name, a.prefix), "/"),
				Size:    derefInt64(item.Properties.ContentLength),
				ETag:    string(*item.Properties.ETag),
				ModTime: *item.Properties.LastModified,
			})
		}
		for _, p := range page.Segment.BlobPrefixes {
			out = append(out, ObjectInfo{
				Key:      strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(*p.Name, a.prefix), "/"), "/"),
				IsPrefix: true,
			})
		}
	}
	return out, nil
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func (a *AzureStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	bc := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(a.fullKey(key))
	props, err := bc.GetProperties(ctx, nil)
	if err != nil {
		return ObjectInfo{}, classifyAzureError(err)
	}
	return ObjectInfo{
		Key:     key,
		Size:    derefInt64(props.ContentLength),
		ETag:    string(*props.ETag),
		ModTime: *props.LastModified,
	}, nil
}

func (a *AzureStore) Get(ctx context.Context, key string, rng *Range) ([]byte, error) {
	opts := &azblob.DownloadStreamOptions{}
	if rng != nil {
		opts.Range = blob.HTTPRange{Offset: rng.Offset, Count: rng.Length}
	}
	resp, err := a.client.DownloadStream(ctx, a.container, a.fullKey(key), opts)
	if err != nil {
		return nil, classifyAzureError(err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (a *AzureStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	uploadOpts := &azblob.UploadBufferOptions{}
	if opts.ContentType != "" {
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &opts.ContentType}
	}
	if opts.IfNoneMatch {
		star := azcore.ETag("*")
		uploadOpts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: &star},
		}
	}
	_, err := a.client.UploadBuffer(ctx, a.container, a.fullKey(key), data, uploadOpts)
	if err != nil {
		return classifyAzureError(err)
	}
	return nil
}

func (a *AzureStore) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, a.fullKey(key), nil)
	if err != nil {
		return classifyAzureError(err)
	}
	return nil
}

func (a *AzureStore) DeletePrefix(ctx context.Context, prefix string) error {
	objs, err := a.List(ctx, prefix, true)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if o.IsPrefix {
			continue
		}
		if err := a.Delete(ctx, o.Key); err != nil {
			return err
		}
	}
	return nil
}

func (a *AzureStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Head(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
